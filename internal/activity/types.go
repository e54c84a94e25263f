// Activity 类型定义
package activity

import (
	"time"

	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	"github.com/cliffalpha-ai/cliffalpha/internal/risk"
)

// ============== Load Drug Universe ==============

// LoadUniverseInput 药物清单加载输入
type LoadUniverseInput struct {
	RunID string `json:"run_id"`
	AsOf  string `json:"as_of"` // YYYY-MM-DD
}

// UniverseResult 药物清单校验结果
type UniverseResult struct {
	Tickers      []string          `json:"tickers"`
	DrugCount    int               `json:"drug_count"`
	Records      []risk.DrugRecord `json:"records"`
	SnapshotDate string            `json:"snapshot_date,omitempty"`
}

// ============== Fetch Prices ==============

// FetchPricesInput 行情拉取输入
type FetchPricesInput struct {
	RunID   string   `json:"run_id"`
	Tickers []string `json:"tickers"`
	Start   string   `json:"start"` // YYYY-MM-DD
	End     string   `json:"end"`
}

// PricePanelRef 价格面板的缓存引用
// 面板本体可能很大，Activity 之间只传 Redis 键
type PricePanelRef struct {
	CacheKey    string   `json:"cache_key"`
	Tickers     []string `json:"tickers"`
	TradingDays int      `json:"trading_days"`
	FromCache   bool     `json:"from_cache"`
}

// ============== Run Simulation ==============

// SimulationInput 模拟输入
// 覆盖字段为空串或 nil 时使用配置文件里的取值，参数扫描工作流靠它生成变体；
// 数值覆盖用指针区分“未设置”与“显式设为零”（如零成本变体）
type SimulationInput struct {
	RunID    string `json:"run_id"`
	PanelKey string `json:"panel_key"`
	Start    string `json:"start,omitempty"` // YYYY-MM-DD，回测与调度共用同一窗口
	End      string `json:"end,omitempty"`

	Strategy            string   `json:"strategy,omitempty"`
	RebalanceFrequency  string   `json:"rebalance_frequency,omitempty"`
	TransactionCostRate *float64 `json:"transaction_cost_rate,omitempty"`
	MinWeight           *float64 `json:"min_weight,omitempty"`
	MaxWeight           *float64 `json:"max_weight,omitempty"`
}

// SimulationResult 模拟结果摘要，资金曲线本体存缓存
type SimulationResult struct {
	EquityKey      string                    `json:"equity_key"`
	Strategy       string                    `json:"strategy"`
	Rebalances     []backtest.RebalanceEvent `json:"rebalances"`
	InitialCapital float64                   `json:"initial_capital"`
	FinalCapital   float64                   `json:"final_capital"`
	TradingDays    int                       `json:"trading_days"`
	Degraded       bool                      `json:"degraded"`
	DroppedTickers []string                  `json:"dropped_tickers,omitempty"`
	FinalWeights   risk.WeightVector         `json:"final_weights"`
}

// ============== Compute Metrics ==============

// MetricsInput 绩效计算输入
type MetricsInput struct {
	RunID        string `json:"run_id"`
	EquityKey    string `json:"equity_key"`
	BenchmarkKey string `json:"benchmark_key,omitempty"`
}

// ============== Persist Result ==============

// PersistInput 结果持久化输入
type PersistInput struct {
	RunID   string                       `json:"run_id"`
	Summary BacktestSummary              `json:"summary"`
	Metrics *backtest.PerformanceMetrics `json:"metrics"`
}

// BacktestSummary 单次回测的结果汇总
type BacktestSummary struct {
	RunID          string            `json:"run_id"`
	Strategy       string            `json:"strategy"`
	Start          string            `json:"start"`
	End            string            `json:"end"`
	InitialCapital float64           `json:"initial_capital"`
	FinalCapital   float64           `json:"final_capital"`
	RebalanceCount int               `json:"rebalance_count"`
	Degraded       bool              `json:"degraded"`
	FinalWeights   risk.WeightVector `json:"final_weights"`
	CompletedAt    time.Time         `json:"completed_at"`
}
