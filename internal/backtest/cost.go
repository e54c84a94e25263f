// 交易成本模型
package backtest

import "github.com/cliffalpha-ai/cliffalpha/internal/risk"

// TransactionCost 按单边换手率线性计费
// cost = Σ|Δw| × rate，首次建仓时旧权重视为全零，即全额建仓计费
func TransactionCost(oldWeights, newWeights risk.WeightVector, rate float64) float64 {
	return newWeights.Turnover(oldWeights) * rate
}
