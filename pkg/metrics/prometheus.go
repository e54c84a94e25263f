// Prometheus 指标定义
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowDuration 工作流执行时长
	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cliffalpha_workflow_duration_seconds",
			Help:    "Workflow execution duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"workflow_type", "status"},
	)

	// ActivityDuration 活动执行时长
	ActivityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cliffalpha_activity_duration_seconds",
			Help:    "Activity execution duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"activity_name", "status"},
	)

	// SimulationDays 已模拟的交易日数
	SimulationDays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cliffalpha_simulation_days_total",
			Help: "Trading days walked by the portfolio simulator",
		},
	)

	// RebalanceEvents 再平衡事件数
	RebalanceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cliffalpha_rebalance_events_total",
			Help: "Rebalance events by weighting strategy",
		},
		[]string{"strategy"},
	)

	// DegradedUniverseRuns 降级股票池运行数
	DegradedUniverseRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cliffalpha_degraded_universe_runs_total",
			Help: "Simulations that fell back to a substitute ticker universe",
		},
	)

	// SkippedDrugRecords 因数据问题跳过的药物记录数
	SkippedDrugRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cliffalpha_skipped_drug_records_total",
			Help: "Drug records excluded from weighting",
		},
		[]string{"reason"}, // missing_expiry, unparseable_expiry, not_in_book
	)

	// CacheHitRate 缓存命中率
	CacheHitRate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cliffalpha_cache_operations_total",
			Help: "Cache operations count",
		},
		[]string{"operation", "result"}, // result: hit/miss
	)

	// BridgeLatency 行情数据桥调用延迟
	BridgeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cliffalpha_marketdata_latency_seconds",
			Help:    "Market data bridge call latency",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	// ErrorsTotal 错误计数
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cliffalpha_errors_total",
			Help: "Total errors by level and code",
		},
		[]string{"level", "code"},
	)

	// ActiveWorkflows 活跃工作流数
	ActiveWorkflows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cliffalpha_active_workflows",
			Help: "Number of currently active backtest workflows",
		},
	)
)
