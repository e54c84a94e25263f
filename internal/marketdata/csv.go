// 本地 CSV 行情
// 目录下每只标的一个 <TICKER>.csv，含 Date 与 Close 两列（yfinance 导出格式）
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	apperrors "github.com/cliffalpha-ai/cliffalpha/pkg/errors"
)

// CSVProvider 离线 CSV 行情提供方
type CSVProvider struct {
	dir    string
	logger *zap.Logger
}

// NewCSVProvider 创建 CSV 提供方
func NewCSVProvider(dir string, logger *zap.Logger) *CSVProvider {
	return &CSVProvider{dir: dir, logger: logger}
}

// Prices 读取并拼接收盘价面板
// 单只标的文件缺失或为空不视为错误，该标的不出现在面板中，
// 由模拟器按降级股票池处理；全部缺失才返回错误
func (p *CSVProvider) Prices(ctx context.Context, tickers []string, start, end time.Time) (backtest.PricePanel, error) {
	perTicker := make(map[string]map[time.Time]float64, len(tickers))
	dateSet := make(map[time.Time]bool)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return backtest.PricePanel{}, err
		}

		series, err := p.loadTicker(ticker, start, end)
		if err != nil {
			p.logger.Warn("No usable price file for ticker",
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			continue
		}
		perTicker[ticker] = series
		for d := range series {
			dateSet[d] = true
		}
	}

	if len(perTicker) == 0 {
		return backtest.PricePanel{}, fmt.Errorf("%w: no price files found under %s", apperrors.ErrPriceDataMissing, p.dir)
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	panel := backtest.PricePanel{
		Dates:  dates,
		Prices: make(map[string][]float64, len(perTicker)),
	}
	for ticker, series := range perTicker {
		vals := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := series[d]; ok {
				vals[i] = v
			} else {
				vals[i] = math.NaN()
			}
		}
		panel.Prices[ticker] = vals
	}

	p.logger.Info("Built price panel from CSV files",
		zap.Int("tickers", len(panel.Prices)),
		zap.Int("trading_days", len(dates)),
	)
	return panel, nil
}

// Close 无持久连接
func (p *CSVProvider) Close() error {
	return nil
}

func (p *CSVProvider) loadTicker(ticker string, start, end time.Time) (map[time.Time]float64, error) {
	path := filepath.Join(p.dir, ticker+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Date":
			dateCol = i
		case "Close", "Adj Close":
			if closeCol == -1 || strings.TrimSpace(name) == "Close" {
				closeCol = i
			}
		}
	}
	if dateCol == -1 || closeCol == -1 {
		return nil, fmt.Errorf("%s missing Date or Close column", path)
	}

	series := make(map[time.Time]float64)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if dateCol >= len(record) || closeCol >= len(record) {
			continue
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(record[dateCol]))
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[closeCol]), 64)
		if err != nil {
			continue
		}
		series[d] = v
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%s has no rows in range", path)
	}
	return series, nil
}
