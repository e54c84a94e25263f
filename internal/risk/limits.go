// 仓位上下限裁剪
package risk

// ApplyPositionLimits 将每个权重裁剪到 [minWeight, maxWeight] 后重新归一化
// 单次裁剪+归一化：归一化可能把个别权重再次推出边界，这是已知近似而非缺陷，
// 多数名字贴住上限时权重和无法精确收敛到 1，此处不做迭代收敛
func ApplyPositionLimits(weights WeightVector, minWeight, maxWeight float64) WeightVector {
	if len(weights) == 0 {
		return WeightVector{}
	}

	clipped := make(WeightVector, len(weights))
	for ticker, w := range weights {
		if w < minWeight {
			w = minWeight
		}
		if w > maxWeight {
			w = maxWeight
		}
		clipped[ticker] = w
	}

	// 全部被压到 0 时退回等权
	if clipped.Sum() <= 0 {
		return EqualWeights(clipped.Tickers())
	}

	return clipped.Normalized()
}
