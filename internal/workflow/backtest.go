// 回测主工作流
// 串联 清单加载 → 行情拉取 → 组合模拟 → 绩效计算 → 结果持久化
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/cliffalpha-ai/cliffalpha/internal/activity"
	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	"github.com/cliffalpha-ai/cliffalpha/pkg/errors"
)

// BacktestInput 回测工作流输入
// 覆盖字段为空串或 nil 时活动层退回配置文件取值，参数扫描靠它生成变体；
// 数值覆盖用指针区分“未设置”与“显式设为零”
type BacktestInput struct {
	Start           string `json:"start"` // YYYY-MM-DD
	End             string `json:"end"`
	BenchmarkTicker string `json:"benchmark_ticker,omitempty"`

	Strategy            string   `json:"strategy,omitempty"`
	RebalanceFrequency  string   `json:"rebalance_frequency,omitempty"`
	TransactionCostRate *float64 `json:"transaction_cost_rate,omitempty"`
	MinWeight           *float64 `json:"min_weight,omitempty"`
	MaxWeight           *float64 `json:"max_weight,omitempty"`
}

// BacktestOutput 回测工作流输出
type BacktestOutput struct {
	RunID       string                       `json:"run_id"`
	Universe    *activity.UniverseResult     `json:"universe"`
	Simulation  *activity.SimulationResult   `json:"simulation"`
	Metrics     *backtest.PerformanceMetrics `json:"metrics"`
	CompletedAt time.Time                    `json:"completed_at"`
}

// ProgressInfo 进度信息 (用于 Query)
type ProgressInfo struct {
	CurrentStep    string   `json:"current_step"`
	CompletedSteps []string `json:"completed_steps"`
	TotalSteps     int      `json:"total_steps"`
	Progress       float64  `json:"progress"`
}

// InterventionSignal 人工干预信号
type InterventionSignal struct {
	Type string `json:"type"` // pause, resume, cancel
}

// BacktestWorkflow 专利悬崖组合回测主工作流
func BacktestWorkflow(ctx workflow.Context, input BacktestInput) (*BacktestOutput, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID
	logger.Info("Starting Backtest Workflow",
		"run_id", runID,
		"start", input.Start,
		"end", input.End,
		"strategy", input.Strategy,
	)

	// 初始化 Saga 补偿
	saga := NewSagaCompensation()

	// 进度跟踪
	var currentStep string
	completedSteps := make([]string, 0)
	const totalSteps = 5

	// 注册 Query Handler
	err := workflow.SetQueryHandler(ctx, "progress", func() (ProgressInfo, error) {
		return ProgressInfo{
			CurrentStep:    currentStep,
			CompletedSteps: completedSteps,
			TotalSteps:     totalSteps,
			Progress:       float64(len(completedSteps)) / float64(totalSteps) * 100,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	// 配置 Activity 选项
	activityOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        1 * time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{"FatalError", "ValidationError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOpts)

	// 信号通道 - 人工干预
	isPaused := false
	signalChan := workflow.GetSignalChannel(ctx, "human-intervention")

	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var signal InterventionSignal
			signalChan.Receive(gCtx, &signal)

			switch signal.Type {
			case "pause":
				isPaused = true
				logger.Info("Workflow paused by signal")
			case "resume":
				isPaused = false
				logger.Info("Workflow resumed by signal")
			case "cancel":
				logger.Info("Workflow cancelled by signal")
				return
			}
		}
	})

	waitForResume := func() {
		_ = workflow.Await(ctx, func() bool { return !isPaused })
	}

	output := &BacktestOutput{RunID: runID}

	// ============== Step 1: 加载药物清单 ==============
	currentStep = "LoadDrugFacts"

	var universeResult activity.UniverseResult
	if err := workflow.ExecuteActivity(ctx, "LoadDrugFactsActivity",
		activity.LoadUniverseInput{
			RunID: runID,
			AsOf:  input.Start,
		}).Get(ctx, &universeResult); err != nil {
		return nil, fmt.Errorf("load drug facts failed: %w", err)
	}
	output.Universe = &universeResult
	completedSteps = append(completedSteps, "LoadDrugFacts")

	if isPaused {
		waitForResume()
	}

	// ============== Step 2: 并行拉取组合与基准行情 ==============
	currentStep = "FetchPrices"

	var panelRef activity.PricePanelRef
	var benchmarkRef activity.PricePanelRef
	benchmarkOK := false

	pricesFuture := workflow.ExecuteActivity(ctx, "FetchPricesActivity",
		activity.FetchPricesInput{
			RunID:   runID,
			Tickers: universeResult.Tickers,
			Start:   input.Start,
			End:     input.End,
		})

	var benchmarkFuture workflow.Future
	if input.BenchmarkTicker != "" {
		benchmarkFuture = workflow.ExecuteActivity(ctx, "FetchPricesActivity",
			activity.FetchPricesInput{
				RunID:   runID,
				Tickers: []string{input.BenchmarkTicker},
				Start:   input.Start,
				End:     input.End,
			})
	}

	var pricesErr error
	selector := workflow.NewSelector(ctx)
	pending := 1

	selector.AddFuture(pricesFuture, func(f workflow.Future) {
		if err := f.Get(ctx, &panelRef); err != nil {
			logger.Error("FetchPrices failed", "error", err)
			pricesErr = err
		} else {
			completedSteps = append(completedSteps, "FetchPrices")
		}
	})

	if benchmarkFuture != nil {
		pending++
		selector.AddFuture(benchmarkFuture, func(f workflow.Future) {
			if err := f.Get(ctx, &benchmarkRef); err != nil {
				// 基准缺失不阻断回测，绩效降级为纯组合侧指标
				logger.Warn("FetchBenchmark failed, continuing without benchmark", "error", err)
			} else {
				benchmarkOK = true
			}
		})
	}

	for i := 0; i < pending; i++ {
		selector.Select(ctx)
	}

	if pricesErr != nil {
		classifiedErr := errors.ClassifyError(pricesErr)
		if classifiedErr.Level >= errors.L2Intervention {
			_ = saga.Execute(ctx)
		}
		return nil, fmt.Errorf("fetch prices failed: %w", pricesErr)
	}

	// 模拟阶段开始产生 run 级缓存，注册清理补偿
	saga.AddCompensation("run-cache", func(ctx workflow.Context) error {
		return workflow.ExecuteActivity(ctx, "CleanupRunActivity", runID).Get(ctx, nil)
	})

	if isPaused {
		waitForResume()
	}

	// ============== Step 3: 组合模拟 ==============
	currentStep = "RunSimulation"

	var simResult activity.SimulationResult
	if err := workflow.ExecuteActivity(ctx, "RunSimulationActivity",
		activity.SimulationInput{
			RunID:               runID,
			PanelKey:            panelRef.CacheKey,
			Start:               input.Start,
			End:                 input.End,
			Strategy:            input.Strategy,
			RebalanceFrequency:  input.RebalanceFrequency,
			TransactionCostRate: input.TransactionCostRate,
			MinWeight:           input.MinWeight,
			MaxWeight:           input.MaxWeight,
		}).Get(ctx, &simResult); err != nil {
		_ = saga.Execute(ctx)
		return nil, fmt.Errorf("simulation failed: %w", err)
	}
	output.Simulation = &simResult
	completedSteps = append(completedSteps, "RunSimulation")

	if isPaused {
		waitForResume()
	}

	// ============== Step 4: 绩效计算 ==============
	currentStep = "ComputeMetrics"

	metricsInput := activity.MetricsInput{
		RunID:     runID,
		EquityKey: simResult.EquityKey,
	}
	if benchmarkOK {
		metricsInput.BenchmarkKey = benchmarkRef.CacheKey
	}

	var perfMetrics backtest.PerformanceMetrics
	if err := workflow.ExecuteActivity(ctx, "ComputeMetricsActivity", metricsInput).Get(ctx, &perfMetrics); err != nil {
		_ = saga.Execute(ctx)
		return nil, fmt.Errorf("compute metrics failed: %w", err)
	}
	output.Metrics = &perfMetrics
	completedSteps = append(completedSteps, "ComputeMetrics")

	if isPaused {
		waitForResume()
	}

	// ============== Step 5: 结果持久化 ==============
	currentStep = "PersistResult"

	summary := activity.BacktestSummary{
		RunID:          runID,
		Strategy:       simResult.Strategy,
		Start:          input.Start,
		End:            input.End,
		InitialCapital: simResult.InitialCapital,
		FinalCapital:   simResult.FinalCapital,
		RebalanceCount: len(simResult.Rebalances),
		Degraded:       simResult.Degraded,
		FinalWeights:   simResult.FinalWeights,
		CompletedAt:    workflow.Now(ctx),
	}
	if err := workflow.ExecuteActivity(ctx, "PersistResultActivity",
		activity.PersistInput{
			RunID:   runID,
			Summary: summary,
			Metrics: &perfMetrics,
		}).Get(ctx, nil); err != nil {
		logger.Warn("PersistResult failed", "error", err)
	} else {
		completedSteps = append(completedSteps, "PersistResult")
	}

	output.CompletedAt = workflow.Now(ctx)

	logger.Info("Backtest Workflow completed",
		"run_id", runID,
		"strategy", simResult.Strategy,
		"final_capital", simResult.FinalCapital,
		"rebalances", len(simResult.Rebalances),
		"degraded", simResult.Degraded,
	)

	return output, nil
}
