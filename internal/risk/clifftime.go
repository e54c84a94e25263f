// 悬崖时间因子加权策略
// 按 时间因子 × 营收因子 × 状态因子 逐药物计算，再按 ticker 聚合
package risk

import (
	"time"

	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
	"go.uber.org/zap"
)

// CliffTimeStrategy 悬崖时间因子模型
type CliffTimeStrategy struct {
	params Params
	logger *zap.Logger
}

func (s *CliffTimeStrategy) Name() string {
	return StrategyCliffTime
}

// Weights 计算目标权重
// 到期日缺失的药物直接剔除（不计为零权重，其营收也不参与计算）
func (s *CliffTimeStrategy) Weights(asOf time.Time, drugs []DrugRecord, totalRevenue RevenueLookup) WeightVector {
	raw := make(WeightVector)

	for _, d := range drugs {
		years, ok := d.YearsToExpiry(asOf)
		if !ok {
			metrics.SkippedDrugRecords.WithLabelValues("missing_expiry").Inc()
			s.logger.Debug("Skipping drug without resolvable expiry",
				zap.String("drug", d.Drug),
				zap.String("ticker", d.Ticker),
			)
			continue
		}

		raw[d.Ticker] += s.rawWeight(d, years)
	}

	return finalize(raw, drugs, s.params)
}

func (s *CliffTimeStrategy) rawWeight(d DrugRecord, years float64) float64 {
	// 已到期：保底微小权重，避免下游出现需要特判剔除的零仓位
	if d.Status == StatusExpired || years <= 0 {
		return s.params.ExpiredFloorWeight
	}

	timeFactor := s.timeFactor(years)

	revenueFactor := d.RevenueBillions / s.params.RevenueScaleBillions
	if revenueFactor > 1.0 {
		revenueFactor = 1.0
	}

	statusFactor := 1.0
	if d.Status == StatusProtected {
		statusFactor = s.params.StatusBonus
	}

	w := timeFactor * revenueFactor * statusFactor
	if w < s.params.RawWeightFloor {
		w = s.params.RawWeightFloor
	}
	return w
}

// timeFactor 距悬崖年数的阶梯折减
func (s *CliffTimeStrategy) timeFactor(years float64) float64 {
	switch {
	case years <= 1:
		return 0.1
	case years <= 2:
		return 0.3
	case years <= s.params.CliffHorizonYears:
		return 0.6
	default:
		return 1.0
	}
}
