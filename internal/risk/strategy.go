// 风险加权策略接口
// 两种并存的加权公式（悬崖时间因子模型 / 营收风险占比模型）通过同一接口选择
package risk

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 策略名称
const (
	StrategyCliffTime     = "cliff-time"
	StrategyRevenueAtRisk = "revenue-at-risk"
)

// RevenueLookup 公司总营收查询（十亿美元），未知返回 false
type RevenueLookup func(ticker string) (float64, bool)

// Params 加权参数
type Params struct {
	CliffHorizonYears      float64 // 超过该年数给满权重
	RevenueScaleBillions   float64 // 营收因子饱和点
	StatusBonus            float64 // still-protected 药物的乘性加成
	ExpiredFloorWeight     float64 // 已到期药物的保底权重
	RawWeightFloor         float64 // 未到期药物的原始权重下限
	FallbackRevenue        float64 // 公司总营收未知时的兜底值
	DiversificationPenalty float64 // 每多一个风险药物的惩罚系数
	MinWeight              float64
	MaxWeight              float64
}

// Strategy 加权策略
// Weights 必须是输入的纯函数：相同输入产生相同输出
type Strategy interface {
	Name() string
	Weights(asOf time.Time, drugs []DrugRecord, totalRevenue RevenueLookup) WeightVector
}

// New 按名称创建策略
func New(name string, params Params, logger *zap.Logger) (Strategy, error) {
	switch name {
	case StrategyCliffTime:
		return &CliffTimeStrategy{params: params, logger: logger}, nil
	case StrategyRevenueAtRisk:
		return &RevenueAtRiskStrategy{params: params, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown weighting strategy: %s", name)
	}
}

// finalize 归一化 + 仓位限制，空向量或零和退回等权
func finalize(raw WeightVector, drugs []DrugRecord, params Params) WeightVector {
	if len(raw) == 0 || raw.Sum() <= 0 {
		return EqualWeights(UniqueTickers(drugs))
	}
	normalized := raw.Normalized()
	return ApplyPositionLimits(normalized, params.MinWeight, params.MaxWeight)
}
