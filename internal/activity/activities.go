// Activity 实现
// 封装回测流水线各阶段的具体业务逻辑
package activity

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/cliffalpha-ai/cliffalpha/internal/backtest"
	"github.com/cliffalpha-ai/cliffalpha/internal/marketdata"
	"github.com/cliffalpha-ai/cliffalpha/internal/orangebook"
	"github.com/cliffalpha-ai/cliffalpha/internal/risk"
	"github.com/cliffalpha-ai/cliffalpha/internal/schedule"
	"github.com/cliffalpha-ai/cliffalpha/internal/universe"
	"github.com/cliffalpha-ai/cliffalpha/pkg/cache"
	"github.com/cliffalpha-ai/cliffalpha/pkg/config"
	apperrors "github.com/cliffalpha-ai/cliffalpha/pkg/errors"
	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
)

const dateLayout = "2006-01-02"

// Activities 包含所有 Activity 的依赖
type Activities struct {
	config   *config.Config
	logger   *zap.Logger
	cache    *cache.RedisCache
	provider marketdata.Provider
	universe *universe.Universe
	book     *orangebook.Store
}

// NewActivities 创建 Activities 实例
func NewActivities(cfg *config.Config, logger *zap.Logger) (*Activities, error) {
	redisCache, err := cache.NewRedisCache(cfg.Storage.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cache: %w", err)
	}

	provider, err := marketdata.New(cfg.MarketData, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create market data provider: %w", err)
	}

	uni, err := universe.Load(cfg.System.UniversePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load drug universe: %w", err)
	}

	book, err := orangebook.LoadDir(cfg.OrangeBook.SnapshotDir, cfg.OrangeBook.SnapshotDates, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load orange book snapshots: %w", err)
	}

	return &Activities{
		config:   cfg,
		logger:   logger,
		cache:    redisCache,
		provider: provider,
		universe: uni,
		book:     book,
	}, nil
}

// Close 关闭资源
func (a *Activities) Close() error {
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

// expiryLookup 指定分析日的 Orange Book 到期日查询
// 回测视角：用分析日可见的快照，取分析日之后最早的到期日
func (a *Activities) expiryLookup(asOf time.Time) universe.ExpiryLookup {
	snapshot, err := a.book.At(asOf)
	if err != nil {
		return nil
	}
	return func(drugName string) *time.Time {
		expiry, ok := snapshot.NextExpiry(drugName, asOf)
		if !ok {
			metrics.SkippedDrugRecords.WithLabelValues("not_in_book").Inc()
			return nil
		}
		return expiry
	}
}

// LoadDrugFactsActivity 加载并校验药物清单
func (a *Activities) LoadDrugFactsActivity(ctx context.Context, input LoadUniverseInput) (*UniverseResult, error) {
	logger := a.logger.With(zap.String("activity", "LoadDrugFacts"), zap.String("run_id", input.RunID))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("LoadDrugFacts", status).Observe(time.Since(startTime).Seconds())
	}()

	asOf, err := time.Parse(dateLayout, input.AsOf)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: invalid as_of date %q", apperrors.ErrConfigInvalid, input.AsOf)
	}

	records := a.universe.Records(asOf, a.expiryLookup(asOf), a.config.Risk.CliffHorizonYears)
	tickers := a.universe.Tickers()
	if len(tickers) == 0 {
		status = "error"
		return nil, apperrors.ErrEmptyUniverse
	}

	result := &UniverseResult{
		Tickers:   tickers,
		DrugCount: len(records),
		Records:   records,
	}
	if snapshot, err := a.book.At(asOf); err == nil {
		result.SnapshotDate = snapshot.Date.Format(dateLayout)
	}

	logger.Info("Loaded drug universe",
		zap.Int("drugs", len(records)),
		zap.Int("tickers", len(tickers)),
	)
	return result, nil
}

// panelCacheKey 价格面板缓存键，标的集合取哈希避免键过长
func panelCacheKey(tickers []string, start, end string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return fmt.Sprintf("prices:%s:%s:%x", start, end, sum[:8])
}

// FetchPricesActivity 拉取收盘价面板，结果存 Redis 并返回缓存键
func (a *Activities) FetchPricesActivity(ctx context.Context, input FetchPricesInput) (*PricePanelRef, error) {
	logger := a.logger.With(zap.String("activity", "FetchPrices"), zap.String("run_id", input.RunID))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("FetchPrices", status).Observe(time.Since(startTime).Seconds())
	}()

	start, err := time.Parse(dateLayout, input.Start)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: invalid start date %q", apperrors.ErrConfigInvalid, input.Start)
	}
	end, err := time.Parse(dateLayout, input.End)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: invalid end date %q", apperrors.ErrConfigInvalid, input.End)
	}

	cacheKey := panelCacheKey(input.Tickers, input.Start, input.End)

	// 1. 检查缓存
	cached, err := a.cache.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		metrics.CacheHitRate.WithLabelValues("get", "hit").Inc()
		var panel backtest.PricePanel
		if err := json.Unmarshal([]byte(cached), &panel); err == nil {
			logger.Info("Cache hit for price panel", zap.String("cache_key", cacheKey))
			return &PricePanelRef{
				CacheKey:    cacheKey,
				Tickers:     panelTickers(panel),
				TradingDays: len(panel.Dates),
				FromCache:   true,
			}, nil
		}
	}
	metrics.CacheHitRate.WithLabelValues("get", "miss").Inc()

	// 2. 心跳
	activity.RecordHeartbeat(ctx, "Fetching price history...")

	// 3. 调用行情提供方
	panel, err := a.provider.Prices(ctx, input.Tickers, start, end)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// 4. 写入缓存
	data, err := json.Marshal(panel)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("marshal price panel: %w", err)
	}
	if err := a.cache.Set(ctx, cacheKey, string(data), a.config.MarketData.PriceCacheTTL); err != nil {
		logger.Warn("Failed to cache price panel", zap.Error(err))
	}

	logger.Info("Fetched price panel",
		zap.Int("tickers", len(panel.Prices)),
		zap.Int("trading_days", len(panel.Dates)),
	)
	return &PricePanelRef{
		CacheKey:    cacheKey,
		Tickers:     panelTickers(panel),
		TradingDays: len(panel.Dates),
	}, nil
}

func panelTickers(panel backtest.PricePanel) []string {
	out := make([]string, 0, len(panel.Prices))
	for t := range panel.Prices {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// loadPanel 从缓存读回价格面板
func (a *Activities) loadPanel(ctx context.Context, key string) (backtest.PricePanel, error) {
	cached, err := a.cache.Get(ctx, key)
	if err != nil {
		return backtest.PricePanel{}, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}
	if cached == "" {
		return backtest.PricePanel{}, fmt.Errorf("%w: panel %s expired from cache", apperrors.ErrPriceDataMissing, key)
	}
	var panel backtest.PricePanel
	if err := json.Unmarshal([]byte(cached), &panel); err != nil {
		return backtest.PricePanel{}, fmt.Errorf("unmarshal panel %s: %w", key, err)
	}
	return panel, nil
}

// simulationParams 合并覆盖项与配置默认值后的模拟参数
type simulationParams struct {
	Strategy  string
	Frequency string
	CostRate  float64
	MinWeight float64
	MaxWeight float64
	Start     string
	End       string
}

// resolveSimulationParams 空串与 nil 表示未覆盖，退回配置取值
// 调度窗口取回测输入的起止日期，保证与价格面板覆盖同一区间
func resolveSimulationParams(input SimulationInput, cfg *config.Config) simulationParams {
	bt := cfg.Backtest
	p := simulationParams{
		Strategy:  cfg.Risk.Strategy,
		Frequency: bt.RebalanceFrequency,
		CostRate:  bt.TransactionCostRate,
		MinWeight: bt.MinWeight,
		MaxWeight: bt.MaxWeight,
		Start:     bt.StartDate,
		End:       bt.EndDate,
	}
	if input.Strategy != "" {
		p.Strategy = input.Strategy
	}
	if input.RebalanceFrequency != "" {
		p.Frequency = input.RebalanceFrequency
	}
	if input.TransactionCostRate != nil {
		p.CostRate = *input.TransactionCostRate
	}
	if input.MinWeight != nil {
		p.MinWeight = *input.MinWeight
	}
	if input.MaxWeight != nil {
		p.MaxWeight = *input.MaxWeight
	}
	if input.Start != "" {
		p.Start = input.Start
	}
	if input.End != "" {
		p.End = input.End
	}
	return p
}

// RunSimulationActivity 运行组合模拟
func (a *Activities) RunSimulationActivity(ctx context.Context, input SimulationInput) (*SimulationResult, error) {
	logger := a.logger.With(zap.String("activity", "RunSimulation"), zap.String("run_id", input.RunID))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("RunSimulation", status).Observe(time.Since(startTime).Seconds())
	}()

	panel, err := a.loadPanel(ctx, input.PanelKey)
	if err != nil {
		status = "error"
		return nil, err
	}

	bt := a.config.Backtest
	p := resolveSimulationParams(input, a.config)

	params := risk.Params{
		CliffHorizonYears:      a.config.Risk.CliffHorizonYears,
		RevenueScaleBillions:   a.config.Risk.RevenueScaleBillions,
		StatusBonus:            a.config.Risk.StatusBonus,
		ExpiredFloorWeight:     a.config.Risk.ExpiredFloorWeight,
		RawWeightFloor:         a.config.Risk.RawWeightFloor,
		FallbackRevenue:        a.config.Risk.FallbackRevenue,
		DiversificationPenalty: a.config.Risk.DiversificationPenalty,
		MinWeight:              p.MinWeight,
		MaxWeight:              p.MaxWeight,
	}
	strategy, err := risk.New(p.Strategy, params, a.logger)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	freq, err := schedule.ParseFrequency(p.Frequency)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	startDate, err := time.Parse(dateLayout, p.Start)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: invalid start date %q", apperrors.ErrConfigInvalid, p.Start)
	}
	endDate, err := time.Parse(dateLayout, p.End)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: invalid end date %q", apperrors.ErrConfigInvalid, p.End)
	}
	sched, err := schedule.Build(startDate, endDate, freq)
	if err != nil {
		status = "error"
		return nil, err
	}

	activity.RecordHeartbeat(ctx, "Running portfolio simulation...")

	revenueLookup := a.universe.RevenueLookup()
	weightsFor := func(asOf time.Time) (risk.WeightVector, error) {
		records := a.universe.Records(asOf, a.expiryLookup(asOf), a.config.Risk.CliffHorizonYears)
		if len(records) == 0 {
			return nil, apperrors.ErrEmptyUniverse
		}
		return strategy.Weights(asOf, records, revenueLookup), nil
	}

	sim := &backtest.Simulator{
		InitialCapital:      bt.InitialCapital,
		TransactionCostRate: p.CostRate,
		Schedule:            sched,
		ToleranceDays:       bt.RebalanceToleranceD,
		Strategy:            p.Strategy,
		Logger:              a.logger,
	}
	result, err := sim.Run(panel, weightsFor)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("simulation failed: %w", err)
	}

	equityKey := fmt.Sprintf("run:%s:equity", input.RunID)
	data, err := json.Marshal(result.Equity)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("marshal equity series: %w", err)
	}
	if err := a.cache.Set(ctx, equityKey, string(data), 7*24*time.Hour); err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: store equity series: %v", apperrors.ErrCacheUnavailable, err)
	}

	logger.Info("Simulation completed",
		zap.String("strategy", p.Strategy),
		zap.Int("trading_days", result.Equity.Len()),
		zap.Int("rebalances", len(result.Rebalances)),
		zap.Bool("degraded", result.Degraded),
	)
	return &SimulationResult{
		EquityKey:      equityKey,
		Strategy:       p.Strategy,
		Rebalances:     result.Rebalances,
		InitialCapital: bt.InitialCapital,
		FinalCapital:   result.Equity.Values[result.Equity.Len()-1],
		TradingDays:    result.Equity.Len(),
		Degraded:       result.Degraded,
		DroppedTickers: result.Dropped,
		FinalWeights:   result.Final,
	}, nil
}

// ComputeMetricsActivity 计算绩效指标
func (a *Activities) ComputeMetricsActivity(ctx context.Context, input MetricsInput) (*backtest.PerformanceMetrics, error) {
	logger := a.logger.With(zap.String("activity", "ComputeMetrics"), zap.String("run_id", input.RunID))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("ComputeMetrics", status).Observe(time.Since(startTime).Seconds())
	}()

	cached, err := a.cache.Get(ctx, input.EquityKey)
	if err != nil || cached == "" {
		status = "error"
		return nil, fmt.Errorf("%w: equity series %s", apperrors.ErrCacheUnavailable, input.EquityKey)
	}
	var equity backtest.Series
	if err := json.Unmarshal([]byte(cached), &equity); err != nil {
		status = "error"
		return nil, fmt.Errorf("unmarshal equity series: %w", err)
	}

	var benchmark backtest.Series
	if input.BenchmarkKey != "" {
		panel, err := a.loadPanel(ctx, input.BenchmarkKey)
		if err != nil {
			// 基准缺失降级为纯组合侧指标
			logger.Warn("Benchmark panel unavailable, computing portfolio-only metrics", zap.Error(err))
		} else {
			benchmark = benchmarkSeries(panel, a.config.Backtest.BenchmarkTicker)
		}
	}

	m := backtest.Compute(equity, benchmark, a.config.Backtest.RiskFreeRate)
	logger.Info("Computed performance metrics",
		zap.Float64("total_return", m.TotalReturn),
		zap.Float64("sharpe", m.SharpeRatio),
		zap.Float64("max_drawdown", m.MaxDrawdown),
	)
	return &m, nil
}

// benchmarkSeries 从单标的面板提取价格序列，缺失行跳过
func benchmarkSeries(panel backtest.PricePanel, ticker string) backtest.Series {
	prices, ok := panel.Prices[ticker]
	if !ok {
		// 面板只有一只标的时直接取它
		for t, p := range panel.Prices {
			ticker, prices = t, p
			ok = true
			break
		}
	}
	if !ok {
		return backtest.Series{}
	}

	var out backtest.Series
	for i, d := range panel.Dates {
		if i < len(prices) && !math.IsNaN(prices[i]) {
			out.Dates = append(out.Dates, d)
			out.Values = append(out.Values, prices[i])
		}
	}
	return out
}

// PersistResultActivity 持久化结果汇总
func (a *Activities) PersistResultActivity(ctx context.Context, input PersistInput) error {
	logger := a.logger.With(zap.String("activity", "PersistResult"), zap.String("run_id", input.RunID))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("PersistResult", status).Observe(time.Since(startTime).Seconds())
	}()

	data, err := json.Marshal(input)
	if err != nil {
		status = "error"
		return fmt.Errorf("marshal result bundle: %w", err)
	}
	key := fmt.Sprintf("run:%s:result", input.RunID)
	if err := a.cache.Set(ctx, key, string(data), 7*24*time.Hour); err != nil {
		status = "error"
		return fmt.Errorf("%w: persist result: %v", apperrors.ErrCacheUnavailable, err)
	}

	logger.Info("Persisted backtest result", zap.String("key", key))
	return nil
}

// CleanupRunActivity 清理本次运行的全部缓存键（Saga 补偿）
func (a *Activities) CleanupRunActivity(ctx context.Context, runID string) error {
	deleted, err := a.cache.DeleteByPrefix(ctx, fmt.Sprintf("run:%s:", runID))
	if err != nil {
		return fmt.Errorf("%w: cleanup run %s: %v", apperrors.ErrCacheUnavailable, runID, err)
	}
	a.logger.Info("Cleaned up run cache",
		zap.String("run_id", runID),
		zap.Int64("deleted_keys", deleted),
	)
	return nil
}

// NotifyCompensationFailureActivity 补偿失败通知，留给人工处理
func (a *Activities) NotifyCompensationFailureActivity(ctx context.Context, step, message string) error {
	metrics.ErrorsTotal.WithLabelValues(apperrors.L2Intervention.String(), "COMPENSATION_FAILED").Inc()
	a.logger.Error("Saga compensation failed, manual intervention required",
		zap.String("step", step),
		zap.String("message", message),
	)
	return nil
}
