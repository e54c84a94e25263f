// 组合模拟器
// 沿交易日推进资金曲线，在再平衡日调仓并计提交易成本
package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cliffalpha-ai/cliffalpha/internal/risk"
	"github.com/cliffalpha-ai/cliffalpha/internal/schedule"
	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
	"go.uber.org/zap"
)

// PricePanel 多标的收盘价面板
// Prices 的每个切片与 Dates 等长，缺失价格用 NaN 表示
type PricePanel struct {
	Dates  []time.Time          `json:"dates"`
	Prices map[string][]float64 `json:"prices"`
}

// priceAt 指定行的价格，缺失返回 false
func (p PricePanel) priceAt(ticker string, row int) (float64, bool) {
	series, ok := p.Prices[ticker]
	if !ok || row < 0 || row >= len(series) {
		return 0, false
	}
	v := series[row]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// hasAnyPrice 标的在面板内是否存在任何有效价格
func (p PricePanel) hasAnyPrice(ticker string) bool {
	for _, v := range p.Prices[ticker] {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// jsonPanel JSON 编码用的中间形态，NaN 以 null 传输
type jsonPanel struct {
	Dates  []time.Time           `json:"dates"`
	Prices map[string][]*float64 `json:"prices"`
}

// MarshalJSON NaN → null
func (p PricePanel) MarshalJSON() ([]byte, error) {
	out := jsonPanel{Dates: p.Dates, Prices: make(map[string][]*float64, len(p.Prices))}
	for ticker, series := range p.Prices {
		vals := make([]*float64, len(series))
		for i := range series {
			if !math.IsNaN(series[i]) {
				v := series[i]
				vals[i] = &v
			}
		}
		out.Prices[ticker] = vals
	}
	return json.Marshal(out)
}

// UnmarshalJSON null → NaN
func (p *PricePanel) UnmarshalJSON(data []byte) error {
	var in jsonPanel
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&in); err != nil {
		return err
	}
	p.Dates = in.Dates
	p.Prices = make(map[string][]float64, len(in.Prices))
	for ticker, vals := range in.Prices {
		series := make([]float64, len(vals))
		for i, v := range vals {
			if v == nil {
				series[i] = math.NaN()
			} else {
				series[i] = *v
			}
		}
		p.Prices[ticker] = series
	}
	return nil
}

// WeightsFunc 给定日期的目标权重
type WeightsFunc func(asOf time.Time) (risk.WeightVector, error)

// RebalanceEvent 单次调仓记录
type RebalanceEvent struct {
	Date          time.Time         `json:"date"`
	ScheduledDate time.Time         `json:"scheduled_date"`
	Weights       risk.WeightVector `json:"weights"`
	Turnover      float64           `json:"turnover"`
	Cost          float64           `json:"cost"`
	CapitalAfter  float64           `json:"capital_after"`
}

// Result 模拟结果
type Result struct {
	Equity     Series            `json:"equity"`
	Rebalances []RebalanceEvent  `json:"rebalances"`
	Degraded   bool              `json:"degraded"`
	Dropped    []string          `json:"dropped,omitempty"`
	Final      risk.WeightVector `json:"final_weights"`
}

// Simulator 组合状态机
type Simulator struct {
	InitialCapital      float64
	TransactionCostRate float64
	Schedule            schedule.Schedule
	ToleranceDays       int
	Strategy            string
	Logger              *zap.Logger
}

// Run 沿面板交易日推进
// 首个交易日无条件建仓，持仓为空时每日重试；此后只在计划日容差窗口内的
// 首个交易日调仓，每个计划日至多触发一次。
// 调仓先行，当日收益按调仓后的持仓计提
func (s *Simulator) Run(panel PricePanel, weightsFor WeightsFunc) (Result, error) {
	if len(panel.Dates) == 0 {
		return Result{}, fmt.Errorf("price panel has no trading days")
	}

	capital := s.InitialCapital
	holdings := risk.WeightVector{}
	triggered := make(map[time.Time]bool, len(s.Schedule.Dates))

	result := Result{
		Equity: Series{
			Dates:  make([]time.Time, 0, len(panel.Dates)),
			Values: make([]float64, 0, len(panel.Dates)),
		},
	}

	for row, day := range panel.Dates {
		rebalance := false
		scheduled := day
		if row == 0 || len(holdings) == 0 {
			rebalance = true
			// 建仓日恰逢计划日时消耗该计划日，避免窗口内重复触发
			if d, ok := s.Schedule.IsRebalanceDay(day, 0); ok {
				scheduled = d
				triggered[d] = true
			}
		} else if d, ok := s.Schedule.IsRebalanceDay(day, s.ToleranceDays); ok && !triggered[d] {
			rebalance = true
			scheduled = d
			triggered[d] = true
		}

		if rebalance {
			target, err := weightsFor(day)
			if err != nil {
				return Result{}, fmt.Errorf("compute weights for %s: %w", day.Format("2006-01-02"), err)
			}
			target, dropped := s.filterToPanel(target, panel)
			if len(dropped) > 0 {
				result.Degraded = true
				result.Dropped = appendUnique(result.Dropped, dropped)
			}

			if len(target) > 0 {
				turnover := target.Turnover(holdings)
				cost := TransactionCost(holdings, target, s.TransactionCostRate)
				capital *= 1 - cost
				holdings = target
				result.Rebalances = append(result.Rebalances, RebalanceEvent{
					Date:          day,
					ScheduledDate: scheduled,
					Weights:       target.Clone(),
					Turnover:      turnover,
					Cost:          cost,
					CapitalAfter:  capital,
				})
				metrics.RebalanceEvents.WithLabelValues(s.Strategy).Inc()
				s.Logger.Info("Rebalanced portfolio",
					zap.String("date", day.Format("2006-01-02")),
					zap.Int("positions", len(target)),
					zap.Float64("turnover", turnover),
					zap.Float64("cost", cost),
				)
			} else {
				// 目标权重为空时维持现有持仓
				s.Logger.Warn("Empty target weights, holding current positions",
					zap.String("date", day.Format("2006-01-02")),
				)
			}
		}

		// 调仓之后再计提当日收益，换仓日的涨跌按新持仓入账
		if row > 0 {
			capital *= 1 + s.dailyReturn(panel, holdings, row)
		}

		result.Equity.Dates = append(result.Equity.Dates, day)
		result.Equity.Values = append(result.Equity.Values, capital)
	}

	if result.Degraded {
		metrics.DegradedUniverseRuns.Inc()
		s.Logger.Warn("Simulation ran with degraded universe",
			zap.Strings("dropped_tickers", result.Dropped),
		)
	}

	metrics.SimulationDays.Add(float64(len(panel.Dates)))
	result.Final = holdings
	return result, nil
}

// dailyReturn 当日组合收益，价格缺失的标的贡献记零
func (s *Simulator) dailyReturn(panel PricePanel, holdings risk.WeightVector, row int) float64 {
	ret := 0.0
	for ticker, w := range holdings {
		prev, okPrev := panel.priceAt(ticker, row-1)
		curr, okCurr := panel.priceAt(ticker, row)
		if !okPrev || !okCurr || prev == 0 {
			continue
		}
		ret += w * (curr/prev - 1)
	}
	return ret
}

// filterToPanel 剔除面板中完全无价格的标的并重新归一化
func (s *Simulator) filterToPanel(target risk.WeightVector, panel PricePanel) (risk.WeightVector, []string) {
	var dropped []string
	kept := make(risk.WeightVector, len(target))
	for ticker, w := range target {
		if panel.hasAnyPrice(ticker) {
			kept[ticker] = w
		} else {
			dropped = append(dropped, ticker)
		}
	}
	if len(dropped) == 0 {
		return target, nil
	}
	return kept.Normalized(), dropped
}

func appendUnique(existing []string, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			existing = append(existing, s)
		}
	}
	return existing
}
