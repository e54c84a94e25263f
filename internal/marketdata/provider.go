// 行情数据提供方
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	"github.com/cliffalpha-ai/cliffalpha/pkg/config"
	"go.uber.org/zap"
)

// Provider 收盘价面板提供方
// 返回的面板中缺失价格以 NaN 表示，整只标的缺失时不在 Prices 中出现
type Provider interface {
	Prices(ctx context.Context, tickers []string, start, end time.Time) (backtest.PricePanel, error)
	Close() error
}

// New 按配置创建提供方
func New(cfg config.MarketDataConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "csv":
		return NewCSVProvider(cfg.CSVDir, logger), nil
	case "bridge":
		return NewBridgeClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown market data provider: %s", cfg.Provider)
	}
}
