package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cliffalpha-ai/cliffalpha/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Risk.Strategy = "cliff-time"
	cfg.Backtest.StartDate = "2020-01-01"
	cfg.Backtest.EndDate = "2024-12-31"
	cfg.Backtest.RebalanceFrequency = "quarterly"
	cfg.Backtest.TransactionCostRate = 0.001
	cfg.Backtest.MinWeight = 0.05
	cfg.Backtest.MaxWeight = 0.20
	return cfg
}

func f64(v float64) *float64 { return &v }

func TestResolveSimulationParamsDefaults(t *testing.T) {
	p := resolveSimulationParams(SimulationInput{RunID: "r1", PanelKey: "k1"}, testConfig())

	assert.Equal(t, "cliff-time", p.Strategy)
	assert.Equal(t, "quarterly", p.Frequency)
	assert.Equal(t, 0.001, p.CostRate)
	assert.Equal(t, 0.05, p.MinWeight)
	assert.Equal(t, 0.20, p.MaxWeight)
	assert.Equal(t, "2020-01-01", p.Start)
	assert.Equal(t, "2024-12-31", p.End)
}

func TestResolveSimulationParamsOverrides(t *testing.T) {
	input := SimulationInput{
		Start:              "2021-06-01",
		End:                "2022-06-01",
		Strategy:           "revenue-at-risk",
		RebalanceFrequency: "monthly",
		MaxWeight:          f64(0.30),
	}
	p := resolveSimulationParams(input, testConfig())

	// 调度窗口跟随回测输入，而非配置文件的默认区间
	assert.Equal(t, "2021-06-01", p.Start)
	assert.Equal(t, "2022-06-01", p.End)
	assert.Equal(t, "revenue-at-risk", p.Strategy)
	assert.Equal(t, "monthly", p.Frequency)
	assert.Equal(t, 0.30, p.MaxWeight)
	// 未覆盖的数值保持配置取值
	assert.Equal(t, 0.001, p.CostRate)
	assert.Equal(t, 0.05, p.MinWeight)
}

func TestResolveSimulationParamsExplicitZero(t *testing.T) {
	input := SimulationInput{
		TransactionCostRate: f64(0),
		MinWeight:           f64(0),
	}
	p := resolveSimulationParams(input, testConfig())

	// 指针覆盖允许显式传零，零成本与无下限变体可以表达
	assert.Equal(t, 0.0, p.CostRate)
	assert.Equal(t, 0.0, p.MinWeight)
	assert.Equal(t, 0.20, p.MaxWeight)
}
