// 风险加权引擎类型定义
package risk

import (
	"math"
	"sort"
	"time"
)

// Status 药物专利状态标签
type Status string

const (
	StatusExpired      Status = "expired"
	StatusExpiringSoon Status = "expiring-soon"
	StatusProtected    Status = "still-protected"
	StatusUnknown      Status = "unknown"
)

// DrugRecord 单个药物的风险记录
// Expiry 为 nil 表示专利到期日缺失或无法解析，该记录会被加权计算剔除
type DrugRecord struct {
	Drug            string     `json:"drug"`
	Company         string     `json:"company"`
	Ticker          string     `json:"ticker"`
	RevenueBillions float64    `json:"revenue_billions"`
	Expiry          *time.Time `json:"expiry,omitempty"`
	Status          Status     `json:"status"`
}

// YearsToExpiry 距专利悬崖年数，按 365.25 天计
func (d DrugRecord) YearsToExpiry(asOf time.Time) (float64, bool) {
	if d.Expiry == nil {
		return 0, false
	}
	return d.Expiry.Sub(asOf).Hours() / 24 / 365.25, true
}

// WeightVector ticker → 权重映射
// 归一化后权重和为 1（空向量除外）
type WeightVector map[string]float64

// Sum 权重总和
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Clone 拷贝
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Normalized 归一化副本，总和为 0 时原样返回
func (w WeightVector) Normalized() WeightVector {
	total := w.Sum()
	if total <= 0 {
		return w.Clone()
	}
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v / total
	}
	return out
}

// Tickers 按字典序返回 ticker 列表
func (w WeightVector) Tickers() []string {
	out := make([]string, 0, len(w))
	for k := range w {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Turnover 与另一权重向量的换手率（绝对变化之和，缺失项按 0 计）
func (w WeightVector) Turnover(other WeightVector) float64 {
	turnover := 0.0
	for k, v := range w {
		turnover += math.Abs(v - other[k])
	}
	for k, v := range other {
		if _, ok := w[k]; !ok {
			turnover += math.Abs(v)
		}
	}
	return turnover
}

// EqualWeights 等权向量
func EqualWeights(tickers []string) WeightVector {
	if len(tickers) == 0 {
		return WeightVector{}
	}
	out := make(WeightVector, len(tickers))
	for _, t := range tickers {
		out[t] = 1.0 / float64(len(tickers))
	}
	return out
}

// UniqueTickers 药物记录中去重后的 ticker 集合
func UniqueTickers(drugs []DrugRecord) []string {
	seen := make(map[string]bool, len(drugs))
	out := make([]string, 0, len(drugs))
	for _, d := range drugs {
		if !seen[d.Ticker] {
			seen[d.Ticker] = true
			out = append(out, d.Ticker)
		}
	}
	sort.Strings(out)
	return out
}
