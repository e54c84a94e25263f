package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testParams() Params {
	return Params{
		CliffHorizonYears:      3.0,
		RevenueScaleBillions:   5.0,
		StatusBonus:            1.2,
		ExpiredFloorWeight:     0.001,
		RawWeightFloor:         0.01,
		FallbackRevenue:        50.0,
		DiversificationPenalty: 0.1,
		MinWeight:              0.0,
		MaxWeight:              1.0,
	}
}

func drugAt(name, ticker string, revenue float64, expiry time.Time, status Status) DrugRecord {
	return DrugRecord{
		Drug:            name,
		Company:         ticker,
		Ticker:          ticker,
		RevenueBillions: revenue,
		Expiry:          &expiry,
		Status:          status,
	}
}

func noRevenue(string) (float64, bool) { return 0, false }

var asOf = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewStrategy(t *testing.T) {
	logger := zap.NewNop()

	s, err := New(StrategyCliffTime, testParams(), logger)
	require.NoError(t, err)
	assert.Equal(t, StrategyCliffTime, s.Name())

	s, err = New(StrategyRevenueAtRisk, testParams(), logger)
	require.NoError(t, err)
	assert.Equal(t, StrategyRevenueAtRisk, s.Name())

	_, err = New("momentum", testParams(), logger)
	assert.Error(t, err)
}

func TestCliffTimeWeightsSumToOne(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("D1", "AAA", 10.0, asOf.AddDate(10, 0, 0), StatusProtected),
		drugAt("D2", "BBB", 3.0, asOf.AddDate(1, 6, 0), StatusExpiringSoon),
		drugAt("D3", "CCC", 6.0, asOf.AddDate(0, -6, 0), StatusExpired),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	assert.Len(t, w, 3)
}

func TestCliffTimeNearCliffWeighsLess(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("NEAR", "AAA", 10.0, asOf.AddDate(0, 9, 0), StatusExpiringSoon),
		drugAt("FAR", "BBB", 10.0, asOf.AddDate(10, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	assert.Less(t, w["AAA"], w["BBB"], "closer cliff should get lower weight")
	// 阶梯因子 0.1 对 1.0，营收因子同为 1
	assert.InDelta(t, 0.1/1.1, w["AAA"], 1e-9)
}

func TestCliffTimeExpiredGetsFloor(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("DEAD", "AAA", 20.0, asOf.AddDate(-1, 0, 0), StatusExpired),
		drugAt("LIVE", "BBB", 20.0, asOf.AddDate(5, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	// 已到期药物拿保底权重而非零，组合里仍保留微小仓位
	assert.Greater(t, w["AAA"], 0.0)
	assert.InDelta(t, 0.001/1.001, w["AAA"], 1e-9)
}

func TestCliffTimeStatusBonus(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("P", "AAA", 10.0, asOf.AddDate(10, 0, 0), StatusProtected),
		drugAt("E", "BBB", 10.0, asOf.AddDate(10, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	// still-protected 获得 1.2 乘性加成
	assert.InDelta(t, 1.2, w["AAA"]/w["BBB"], 1e-9)
}

func TestCliffTimeRevenueFactorSaturates(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("BIG", "AAA", 50.0, asOf.AddDate(10, 0, 0), StatusExpiringSoon),
		drugAt("AT_SCALE", "BBB", 5.0, asOf.AddDate(10, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	// 营收因子在 scale 处饱和，两者原始权重相同
	assert.InDelta(t, w["AAA"], w["BBB"], 1e-9)
}

func TestCliffTimeSkipsMissingExpiry(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		{Drug: "NOEXP", Ticker: "AAA", RevenueBillions: 5.0, Status: StatusUnknown},
		drugAt("OK", "BBB", 5.0, asOf.AddDate(5, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	_, present := w["AAA"]
	assert.False(t, present, "drug without expiry must be excluded")
	assert.InDelta(t, 1.0, w["BBB"], 1e-9)
}

func TestCliffTimeEqualWeightFallback(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		{Drug: "A", Ticker: "AAA", RevenueBillions: 5.0, Status: StatusUnknown},
		{Drug: "B", Ticker: "BBB", RevenueBillions: 5.0, Status: StatusUnknown},
	}

	// 全部记录被剔除时退回等权
	w := s.Weights(asOf, drugs, noRevenue)
	assert.InDelta(t, 0.5, w["AAA"], 1e-9)
	assert.InDelta(t, 0.5, w["BBB"], 1e-9)
}

func TestCliffTimeDeterministic(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("D1", "AAA", 10.0, asOf.AddDate(4, 0, 0), StatusProtected),
		drugAt("D2", "BBB", 3.0, asOf.AddDate(2, 0, 0), StatusExpiringSoon),
	}

	first := s.Weights(asOf, drugs, noRevenue)
	second := s.Weights(asOf, drugs, noRevenue)
	assert.Equal(t, first, second, "weights must be a pure function of inputs")
}

func TestCliffTimeRawWeightSaturatedScenario(t *testing.T) {
	params := testParams()
	params.RevenueScaleBillions = 10.0
	s := &CliffTimeStrategy{params: params, logger: zap.NewNop()}

	d := drugAt("D", "AAA", 10.0, asOf.AddDate(10, 0, 0), StatusExpiringSoon)
	years, ok := d.YearsToExpiry(asOf)
	require.True(t, ok)

	// 10 年到期、100 亿营收、饱和点 100 亿：时间因子 1.0 × 营收因子 1.0
	assert.InDelta(t, 1.0, s.rawWeight(d, years), 1e-9)
}

func TestCliffTimeExpiredContributesNegligibly(t *testing.T) {
	s, _ := New(StrategyCliffTime, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("DEAD", "AAA", 10.0, asOf.AddDate(-1, 0, 0), StatusExpired),
		drugAt("LIVE", "AAA", 5.0, asOf.AddDate(5, 0, 0), StatusExpiringSoon),
		drugAt("REF", "BBB", 5.0, asOf.AddDate(5, 0, 0), StatusExpiringSoon),
	}

	w := s.Weights(asOf, drugs, noRevenue)
	// 同 ticker 的已到期药物只贡献保底权重，聚合结果接近未到期药物单独的贡献
	assert.InDelta(t, w["BBB"], w["AAA"], 0.001)
	assert.Greater(t, w["AAA"], w["BBB"])
}

func TestRevenueAtRiskHigherExposureWeighsLess(t *testing.T) {
	s, _ := New(StrategyRevenueAtRisk, testParams(), zap.NewNop())
	drugs := []DrugRecord{
		drugAt("SMALL", "AAA", 1.0, asOf.AddDate(2, 0, 0), StatusExpiringSoon),
		drugAt("HUGE", "BBB", 40.0, asOf.AddDate(2, 0, 0), StatusExpiringSoon),
	}
	revenues := func(ticker string) (float64, bool) { return 50.0, true }

	w := s.Weights(asOf, drugs, revenues)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	assert.Greater(t, w["AAA"], w["BBB"], "higher revenue at risk should get lower weight")
}

func TestRevenueAtRiskUsesFallbackRevenue(t *testing.T) {
	params := testParams()
	s, _ := New(StrategyRevenueAtRisk, params, zap.NewNop())
	drugs := []DrugRecord{
		drugAt("D", "AAA", 25.0, asOf.AddDate(10, 0, 0), StatusProtected),
	}

	// 总营收未知时兜底 50.0，风险占比 50% → 风险因子 0.5，时间因子 1.0，单药无惩罚
	w := s.Weights(asOf, drugs, noRevenue)
	assert.InDelta(t, 1.0, w["AAA"], 1e-9)
}

func TestRevenueAtRiskDiversificationPenalty(t *testing.T) {
	s, _ := New(StrategyRevenueAtRisk, testParams(), zap.NewNop())
	revenues := func(ticker string) (float64, bool) { return 100.0, true }

	single := []DrugRecord{
		drugAt("D1", "AAA", 1.0, asOf.AddDate(10, 0, 0), StatusProtected),
		drugAt("X", "BBB", 1.0, asOf.AddDate(10, 0, 0), StatusProtected),
	}
	multi := []DrugRecord{
		drugAt("D1", "AAA", 0.5, asOf.AddDate(10, 0, 0), StatusProtected),
		drugAt("D2", "AAA", 0.5, asOf.AddDate(10, 0, 0), StatusProtected),
		drugAt("X", "BBB", 1.0, asOf.AddDate(10, 0, 0), StatusProtected),
	}

	wSingle := s.Weights(asOf, single, revenues)
	wMulti := s.Weights(asOf, multi, revenues)
	// 同公司风险药物越多，相对权重越低
	assert.Less(t, wMulti["AAA"], wSingle["AAA"])
}

func TestRevenueAtRiskTimeFactorFloor(t *testing.T) {
	s, _ := New(StrategyRevenueAtRisk, testParams(), zap.NewNop())
	revenues := func(ticker string) (float64, bool) { return 100.0, true }
	drugs := []DrugRecord{
		drugAt("SOON", "AAA", 1.0, asOf.AddDate(0, 1, 0), StatusExpiringSoon),
		drugAt("FAR", "BBB", 1.0, asOf.AddDate(20, 0, 0), StatusProtected),
	}

	w := s.Weights(asOf, drugs, revenues)
	// 时间因子下限 0.1，上限 1.0
	assert.InDelta(t, 0.1/1.1, w["AAA"], 1e-6)
	assert.InDelta(t, 1.0/1.1, w["BBB"], 1e-6)
}

func TestYearsToExpiry(t *testing.T) {
	expiry := asOf.AddDate(2, 0, 0)
	d := DrugRecord{Expiry: &expiry}
	years, ok := d.YearsToExpiry(asOf)
	require.True(t, ok)
	assert.InDelta(t, 2.0, years, 0.01)

	_, ok = DrugRecord{}.YearsToExpiry(asOf)
	assert.False(t, ok)
}
