// 行情数据桥客户端
// 经 gRPC 调用 Python 侧的 yfinance 桥服务
package marketdata

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	"github.com/cliffalpha-ai/cliffalpha/pkg/config"
	apperrors "github.com/cliffalpha-ai/cliffalpha/pkg/errors"
	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
)

// BridgeClient 行情桥 gRPC 客户端
type BridgeClient struct {
	cfg    config.MarketDataConfig
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// NewBridgeClient 创建并连接行情桥
func NewBridgeClient(cfg config.MarketDataConfig, logger *zap.Logger) (*BridgeClient, error) {
	if cfg.BridgeAddress == "" {
		return nil, fmt.Errorf("%w: bridge_address not configured", apperrors.ErrConfigInvalid)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, cfg.BridgeAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperrors.ErrBridgeUnavailable, cfg.BridgeAddress, err)
	}

	logger.Info("Connected to market data bridge",
		zap.String("address", cfg.BridgeAddress),
	)
	return &BridgeClient{cfg: cfg, conn: conn, logger: logger}, nil
}

// Prices 拉取收盘价面板
func (c *BridgeClient) Prices(ctx context.Context, tickers []string, start, end time.Time) (backtest.PricePanel, error) {
	startTime := time.Now()
	defer func() {
		metrics.BridgeLatency.WithLabelValues("get_prices").Observe(time.Since(startTime).Seconds())
	}()

	// TODO: 从 proto/marketdata.proto 生成桩代码后替换为真实调用
	// 桥服务未就绪前统一返回可重试错误，离线回测请改用 csv 提供方
	return backtest.PricePanel{}, fmt.Errorf("%w: bridge stub not generated", apperrors.ErrBridgeUnavailable)
}

// Close 关闭连接
func (c *BridgeClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
