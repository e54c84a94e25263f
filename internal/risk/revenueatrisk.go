// 营收风险占比加权策略
// 先按公司聚合风险药物，再按 时间因子 × 风险因子 × 分散惩罚 计算
package risk

import (
	"time"

	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
	"go.uber.org/zap"
)

// RevenueAtRiskStrategy 营收风险占比模型
type RevenueAtRiskStrategy struct {
	params Params
	logger *zap.Logger
}

func (s *RevenueAtRiskStrategy) Name() string {
	return StrategyRevenueAtRisk
}

// companyExposure 公司层面的专利悬崖敞口
type companyExposure struct {
	revenueAtRisk  float64
	yearsToEarliest float64
	drugsAtRisk    int
}

// Weights 计算目标权重
func (s *RevenueAtRiskStrategy) Weights(asOf time.Time, drugs []DrugRecord, totalRevenue RevenueLookup) WeightVector {
	exposures := make(map[string]*companyExposure)

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

		exp, found := exposures[d.Ticker]
		if !found {
			exp = &companyExposure{yearsToEarliest: years}
			exposures[d.Ticker] = exp
		}
		exp.revenueAtRisk += d.RevenueBillions
		exp.drugsAtRisk++
		if years < exp.yearsToEarliest {
			exp.yearsToEarliest = years
		}
	}

	raw := make(WeightVector, len(exposures))
	for ticker, exp := range exposures {
		total, ok := totalRevenue(ticker)
		if !ok || total <= 0 {
			total = s.params.FallbackRevenue
			s.logger.Debug("Using fallback company revenue",
				zap.String("ticker", ticker),
				zap.Float64("fallback_billions", total),
			)
		}

		riskPercent := exp.revenueAtRisk / total * 100

		// 最早悬崖越近权重越低
		timeFactor := exp.yearsToEarliest / 5
		if timeFactor > 1.0 {
			timeFactor = 1.0
		}
		if timeFactor < 0.1 {
			timeFactor = 0.1
		}

		// 风险营收占比越高权重越低
		capped := riskPercent / 100
		if capped > 0.9 {
			capped = 0.9
		}
		riskFactor := 1 - capped
		if riskFactor < 0.1 {
			riskFactor = 0.1
		}

		// 同一公司多药物同时临崖时的分散惩罚
		diversification := 1 - float64(exp.drugsAtRisk-1)*s.params.DiversificationPenalty
		if diversification < 0.5 {
			diversification = 0.5
		}

		raw[ticker] = timeFactor * riskFactor * diversification
	}

	return finalize(raw, drugs, s.params)
}
