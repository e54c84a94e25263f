package backtest

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cliffalpha-ai/cliffalpha/internal/risk"
	"github.com/cliffalpha-ai/cliffalpha/internal/schedule"
)

func panelOf(prices map[string][]float64) PricePanel {
	var n int
	for _, series := range prices {
		n = len(series)
		break
	}
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	return PricePanel{Dates: dates, Prices: prices}
}

func fixedWeights(w risk.WeightVector) WeightsFunc {
	return func(time.Time) (risk.WeightVector, error) {
		return w.Clone(), nil
	}
}

func newSimulator(capital, costRate float64) *Simulator {
	return &Simulator{
		InitialCapital:      capital,
		TransactionCostRate: costRate,
		ToleranceDays:       3,
		Strategy:            "cliff-time",
		Logger:              zap.NewNop(),
	}
}

func TestRunBuyAndHoldRoundtrip(t *testing.T) {
	panel := panelOf(map[string][]float64{"AAA": {100, 110}})
	sim := newSimulator(100000, 0)

	result, err := sim.Run(panel, fixedWeights(risk.WeightVector{"AAA": 1}))
	require.NoError(t, err)

	// 10% 涨幅、零成本：10 万进 11 万出
	require.Equal(t, 2, result.Equity.Len())
	assert.InDelta(t, 100000, result.Equity.Values[0], 1e-9)
	assert.InDelta(t, 110000, result.Equity.Values[1], 1e-9)
	assert.Len(t, result.Rebalances, 1, "only the initial allocation")
	assert.False(t, result.Degraded)
}

func TestRunChargesInitialAllocationCost(t *testing.T) {
	panel := panelOf(map[string][]float64{"AAA": {100, 100}})
	sim := newSimulator(100000, 0.001)

	result, err := sim.Run(panel, fixedWeights(risk.WeightVector{"AAA": 1}))
	require.NoError(t, err)

	// 建仓换手率 1，价格不动，只剩成本损耗
	assert.InDelta(t, 100000*(1-0.001), result.Equity.Values[1], 1e-6)
}

func TestRunRebalancesOncePerScheduledDate(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"AAA": {100, 100, 100, 100, 100, 100},
		"BBB": {50, 50, 50, 50, 50, 50},
	})
	sim := newSimulator(100000, 0)
	// 计划日落在第 3 个交易日，容差窗口覆盖多天但只触发一次
	sim.Schedule = schedule.Schedule{Dates: []time.Time{panel.Dates[2]}}

	calls := 0
	weightsFor := func(time.Time) (risk.WeightVector, error) {
		calls++
		if calls == 1 {
			return risk.WeightVector{"AAA": 1}, nil
		}
		return risk.WeightVector{"AAA": 0.5, "BBB": 0.5}, nil
	}

	result, err := sim.Run(panel, weightsFor)
	require.NoError(t, err)
	assert.Len(t, result.Rebalances, 2, "initial allocation plus one scheduled rebalance")
	// 容差窗口在计划日前就已打开，首个落入窗口的交易日触发
	assert.Equal(t, panel.Dates[1], result.Rebalances[1].Date)
	assert.Equal(t, panel.Dates[2], result.Rebalances[1].ScheduledDate)
	assert.Equal(t, 2, calls)
}

func TestRunRebalanceAppliesBeforeDayReturn(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"AAA": {100, 100, 100},
		"BBB": {100, 100, 110},
	})
	sim := newSimulator(100000, 0)
	sim.ToleranceDays = 0
	sim.Schedule = schedule.Schedule{Dates: []time.Time{panel.Dates[2]}}

	calls := 0
	weightsFor := func(time.Time) (risk.WeightVector, error) {
		calls++
		if calls == 1 {
			return risk.WeightVector{"AAA": 1}, nil
		}
		return risk.WeightVector{"BBB": 1}, nil
	}

	result, err := sim.Run(panel, weightsFor)
	require.NoError(t, err)

	// 换仓日先调仓再计提收益，当日 BBB 的 10% 涨幅按新持仓入账
	require.Len(t, result.Rebalances, 2)
	assert.Equal(t, panel.Dates[2], result.Rebalances[1].Date)
	assert.InDelta(t, 110000, result.Equity.Values[2], 1e-6)
}

func TestRunRetriesDailyWhileHoldingsEmpty(t *testing.T) {
	panel := panelOf(map[string][]float64{"AAA": {100, 100, 110}})
	sim := newSimulator(100000, 0)

	calls := 0
	weightsFor := func(time.Time) (risk.WeightVector, error) {
		calls++
		if calls == 1 {
			return risk.WeightVector{}, nil
		}
		return risk.WeightVector{"AAA": 1}, nil
	}

	result, err := sim.Run(panel, weightsFor)
	require.NoError(t, err)

	// 首日目标为空则持仓为空，次日重试建仓而不是等下一个计划日
	require.Len(t, result.Rebalances, 1)
	assert.Equal(t, panel.Dates[1], result.Rebalances[0].Date)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 110000, result.Equity.Values[2], 1e-6)
}

func TestRunMissingPriceZeroContribution(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"AAA": {100, math.NaN(), 120},
		"BBB": {100, 110, 110},
	})
	sim := newSimulator(100000, 0)

	result, err := sim.Run(panel, fixedWeights(risk.WeightVector{"AAA": 0.5, "BBB": 0.5}))
	require.NoError(t, err)

	// 第 2 天 AAA 缺价贡献记零，只有 BBB 的 10% 起作用
	assert.InDelta(t, 100000*(1+0.5*0.10), result.Equity.Values[1], 1e-6)
	// 第 3 天 AAA 前日缺价，同样贡献记零
	assert.InDelta(t, result.Equity.Values[1], result.Equity.Values[2], 1e-6)
}

func TestRunDegradedUniverse(t *testing.T) {
	panel := panelOf(map[string][]float64{"AAA": {100, 110}})
	sim := newSimulator(100000, 0)

	result, err := sim.Run(panel, fixedWeights(risk.WeightVector{"AAA": 0.5, "GONE": 0.5}))
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, []string{"GONE"}, result.Dropped)
	// 剩余标的重新归一化后满仓 AAA
	assert.InDelta(t, 110000, result.Equity.Values[1], 1e-6)
}

func TestRunEmptyTargetHoldsPositions(t *testing.T) {
	panel := panelOf(map[string][]float64{"AAA": {100, 110, 121}})
	sim := newSimulator(100000, 0)
	sim.Schedule = schedule.Schedule{Dates: []time.Time{panel.Dates[1]}}

	calls := 0
	weightsFor := func(time.Time) (risk.WeightVector, error) {
		calls++
		if calls == 1 {
			return risk.WeightVector{"AAA": 1}, nil
		}
		return risk.WeightVector{}, nil
	}

	result, err := sim.Run(panel, weightsFor)
	require.NoError(t, err)
	// 空目标维持现有持仓，资金曲线继续跟随 AAA
	assert.InDelta(t, 121000, result.Equity.Values[2], 1e-6)
	assert.Len(t, result.Rebalances, 1)
}

func TestRunEmptyPanel(t *testing.T) {
	sim := newSimulator(100000, 0)
	_, err := sim.Run(PricePanel{}, fixedWeights(risk.WeightVector{"AAA": 1}))
	assert.Error(t, err)
}

func TestPricePanelJSONRoundtrip(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"AAA": {100, math.NaN(), 120},
	})

	data, err := json.Marshal(panel)
	require.NoError(t, err)
	assert.Contains(t, string(data), "null", "NaN serializes as null")

	var decoded PricePanel
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Prices["AAA"], 3)
	assert.Equal(t, 100.0, decoded.Prices["AAA"][0])
	assert.True(t, math.IsNaN(decoded.Prices["AAA"][1]))
	assert.Equal(t, 120.0, decoded.Prices["AAA"][2])
	assert.True(t, decoded.Dates[0].Equal(panel.Dates[0]))
}
