// 时间序列与基础统计
package backtest

import (
	"math"
	"time"
)

// Series 日期对齐的数值序列
type Series struct {
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// Len 序列长度
func (s Series) Len() int {
	return len(s.Values)
}

// Returns 简单收益率序列，长度为 Len()-1
func (s Series) Returns() []float64 {
	if s.Len() < 2 {
		return nil
	}
	out := make([]float64, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		out = append(out, safeDivide(s.Values[i]-s.Values[i-1], s.Values[i-1], 0))
	}
	return out
}

// Align 两条序列按日期做内连接，只保留共同日期
func Align(a, b Series) (Series, Series) {
	index := make(map[time.Time]float64, b.Len())
	for i, d := range b.Dates {
		index[d] = b.Values[i]
	}

	var outA, outB Series
	for i, d := range a.Dates {
		v, ok := index[d]
		if !ok {
			continue
		}
		outA.Dates = append(outA.Dates, d)
		outA.Values = append(outA.Values, a.Values[i])
		outB.Dates = append(outB.Dates, d)
		outB.Values = append(outB.Values, v)
	}
	return outA, outB
}

// safeDivide 除零保护
func safeDivide(num, den, fallback float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return fallback
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// stdDev 样本标准差（ddof=1）
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	total := 0.0
	for _, x := range xs {
		total += (x - m) * (x - m)
	}
	return math.Sqrt(total / float64(len(xs)-1))
}

// covariance 样本协方差（ddof=1），长度不等或不足时返回 0
func covariance(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	total := 0.0
	for i := range xs {
		total += (xs[i] - mx) * (ys[i] - my)
	}
	return total / float64(len(xs)-1)
}

func variance(xs []float64) float64 {
	return covariance(xs, xs)
}
