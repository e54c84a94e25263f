// 参数扫描工作流
// 对同一回测区间并行运行多组策略参数变体，逐一启动子回测工作流
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// SweepVariant 单组参数变体
// 未设置的字段沿用基线输入；指针字段允许显式传零（如零成本变体）
type SweepVariant struct {
	Name                string   `json:"name"`
	Strategy            string   `json:"strategy,omitempty"`
	RebalanceFrequency  string   `json:"rebalance_frequency,omitempty"`
	TransactionCostRate *float64 `json:"transaction_cost_rate,omitempty"`
	MinWeight           *float64 `json:"min_weight,omitempty"`
	MaxWeight           *float64 `json:"max_weight,omitempty"`
}

// SweepInput 参数扫描输入
type SweepInput struct {
	Base     BacktestInput  `json:"base"`
	Variants []SweepVariant `json:"variants"`
}

// VariantResult 单组变体的结果
type VariantResult struct {
	Variant SweepVariant    `json:"variant"`
	Output  *BacktestOutput `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SweepOutput 参数扫描输出
type SweepOutput struct {
	Results     []VariantResult `json:"results"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	CompletedAt time.Time       `json:"completed_at"`
}

// SweepWorkflow 参数扫描主工作流
func SweepWorkflow(ctx workflow.Context, input SweepInput) (*SweepOutput, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID
	logger.Info("Starting Sweep Workflow", "variants", len(input.Variants))

	if len(input.Variants) == 0 {
		return nil, fmt.Errorf("sweep requires at least one variant")
	}

	// 变体进度 (用于 Query)
	variantProgress := make(map[string]string, len(input.Variants))
	for _, v := range input.Variants {
		variantProgress[v.Name] = "pending"
	}
	err := workflow.SetQueryHandler(ctx, "progress", func() (map[string]string, error) {
		out := make(map[string]string, len(variantProgress))
		for k, v := range variantProgress {
			out[k] = v
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	// 并行启动每组变体的子回测工作流
	results := make([]VariantResult, len(input.Variants))
	futures := make([]workflow.ChildWorkflowFuture, len(input.Variants))

	for i, variant := range input.Variants {
		childOpts := workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("backtest-%s-%s-%d", variant.Name, runID, i),
		}
		childCtx := workflow.WithChildOptions(ctx, childOpts)

		childInput := input.Base
		if variant.Strategy != "" {
			childInput.Strategy = variant.Strategy
		}
		if variant.RebalanceFrequency != "" {
			childInput.RebalanceFrequency = variant.RebalanceFrequency
		}
		if variant.TransactionCostRate != nil {
			childInput.TransactionCostRate = variant.TransactionCostRate
		}
		if variant.MinWeight != nil {
			childInput.MinWeight = variant.MinWeight
		}
		if variant.MaxWeight != nil {
			childInput.MaxWeight = variant.MaxWeight
		}

		futures[i] = workflow.ExecuteChildWorkflow(childCtx, BacktestWorkflow, childInput)
		variantProgress[variant.Name] = "in_progress"
	}

	// 使用 Selector 收集所有变体结果
	selector := workflow.NewSelector(ctx)
	succeeded, failed := 0, 0
	for i, future := range futures {
		idx := i
		variant := input.Variants[idx]
		selector.AddFuture(future, func(f workflow.Future) {
			var output BacktestOutput
			if err := f.Get(ctx, &output); err != nil {
				logger.Error("Variant backtest failed", "variant", variant.Name, "error", err)
				variantProgress[variant.Name] = "failed"
				results[idx] = VariantResult{Variant: variant, Error: err.Error()}
				failed++
			} else {
				variantProgress[variant.Name] = "completed"
				results[idx] = VariantResult{Variant: variant, Output: &output}
				succeeded++
			}
		})
	}

	for range futures {
		selector.Select(ctx)
	}

	output := &SweepOutput{
		Results:     results,
		Succeeded:   succeeded,
		Failed:      failed,
		CompletedAt: workflow.Now(ctx),
	}

	logger.Info("Sweep Workflow completed",
		"succeeded", succeeded,
		"failed", failed,
	)
	return output, nil
}
