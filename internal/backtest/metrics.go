// 绩效指标计算
package backtest

import "math"

// 年化按 252 个交易日计
const tradingDaysPerYear = 252.0

// PerformanceMetrics 回测绩效指标
// 基准相关字段仅在提供基准序列时有意义
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`

	BenchmarkReturn     float64 `json:"benchmark_return"`
	BenchmarkAnnualized float64 `json:"benchmark_annualized"`
	BenchmarkVolatility float64 `json:"benchmark_volatility"`
	Beta                float64 `json:"beta"`
	Alpha               float64 `json:"alpha"`
	TrackingError       float64 `json:"tracking_error"`
	InformationRatio    float64 `json:"information_ratio"`
	ExcessReturn        float64 `json:"excess_return"`
}

// Compute 从资金曲线与基准曲线计算全部指标
// benchmark 可为空序列，此时跳过基准侧指标，Beta 取 1.0
func Compute(equity, benchmark Series, riskFreeRate float64) PerformanceMetrics {
	m := PerformanceMetrics{Beta: 1.0}
	if equity.Len() < 2 {
		return m
	}

	returns := equity.Returns()
	m.TotalReturn = safeDivide(equity.Values[equity.Len()-1], equity.Values[0], 1) - 1
	m.AnnualizedReturn = annualize(m.TotalReturn, len(returns))
	m.Volatility = stdDev(returns) * math.Sqrt(tradingDaysPerYear)
	m.SharpeRatio = safeDivide(m.AnnualizedReturn-riskFreeRate, m.Volatility, 0)
	m.MaxDrawdown = maxDrawdown(equity.Values)
	m.WinRate = winRate(returns)

	if benchmark.Len() < 2 {
		return m
	}

	alignedEq, alignedBench := Align(equity, benchmark)
	if alignedEq.Len() < 2 {
		return m
	}

	portReturns := alignedEq.Returns()
	benchReturns := alignedBench.Returns()

	m.BenchmarkReturn = safeDivide(alignedBench.Values[alignedBench.Len()-1], alignedBench.Values[0], 1) - 1
	m.BenchmarkAnnualized = annualize(m.BenchmarkReturn, len(benchReturns))
	m.BenchmarkVolatility = stdDev(benchReturns) * math.Sqrt(tradingDaysPerYear)

	// 基准无波动时 beta 退化为 1.0
	benchVar := variance(benchReturns)
	if benchVar > 0 {
		m.Beta = covariance(portReturns, benchReturns) / benchVar
	}

	m.Alpha = m.AnnualizedReturn - (riskFreeRate + m.Beta*(m.BenchmarkAnnualized-riskFreeRate))
	m.ExcessReturn = m.AnnualizedReturn - m.BenchmarkAnnualized

	diffs := make([]float64, len(portReturns))
	for i := range portReturns {
		diffs[i] = portReturns[i] - benchReturns[i]
	}
	m.TrackingError = stdDev(diffs) * math.Sqrt(tradingDaysPerYear)
	m.InformationRatio = safeDivide(m.ExcessReturn, m.TrackingError, 0)

	return m
}

// annualize 总收益折算年化
func annualize(totalReturn float64, periods int) float64 {
	if periods <= 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1+totalReturn, tradingDaysPerYear/float64(periods)) - 1
}

// maxDrawdown 最大回撤，非正数
func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		dd := safeDivide(v, peak, 1) - 1
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// winRate 正收益交易日占比
func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}
