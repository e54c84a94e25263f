// 配置管理
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	System        SystemConfig        `mapstructure:"system"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Storage       StorageConfig       `mapstructure:"storage"`
	MarketData    MarketDataConfig    `mapstructure:"market_data"`
	OrangeBook    OrangeBookConfig    `mapstructure:"orange_book"`
	Backtest      BacktestConfig      `mapstructure:"backtest"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Env             string        `mapstructure:"env"`
	ServiceName     string        `mapstructure:"service_name"`
	Version         string        `mapstructure:"version"`
	UniversePath    string        `mapstructure:"universe_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TemporalConfig Temporal 配置
type TemporalConfig struct {
	Address   string       `mapstructure:"address"`
	Namespace string       `mapstructure:"namespace"`
	TaskQueue string       `mapstructure:"task_queue"`
	Worker    WorkerConfig `mapstructure:"worker"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	MaxConcurrentActivities int `mapstructure:"max_concurrent_activities"`
	MaxConcurrentWorkflows  int `mapstructure:"max_concurrent_workflows"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MarketDataConfig 行情数据配置
type MarketDataConfig struct {
	Provider      string        `mapstructure:"provider"` // bridge, csv
	BridgeAddress string        `mapstructure:"bridge_address"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PriceCacheTTL time.Duration `mapstructure:"price_cache_ttl"`
	CSVDir        string        `mapstructure:"csv_dir"`
}

// OrangeBookConfig Orange Book 快照配置
type OrangeBookConfig struct {
	SnapshotDir   string   `mapstructure:"snapshot_dir"`
	SnapshotDates []string `mapstructure:"snapshot_dates"`
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	StartDate           string  `mapstructure:"start_date"`
	EndDate             string  `mapstructure:"end_date"`
	RebalanceFrequency  string  `mapstructure:"rebalance_frequency"` // monthly, quarterly, annually
	RebalanceToleranceD int     `mapstructure:"rebalance_tolerance_days"`
	InitialCapital      float64 `mapstructure:"initial_capital"`
	TransactionCostRate float64 `mapstructure:"transaction_cost_rate"`
	MinWeight           float64 `mapstructure:"min_weight"`
	MaxWeight           float64 `mapstructure:"max_weight"`
	BenchmarkTicker     string  `mapstructure:"benchmark_ticker"`
	RiskFreeRate        float64 `mapstructure:"risk_free_rate"`
}

// RiskConfig 风险模型配置
type RiskConfig struct {
	Strategy               string  `mapstructure:"strategy"` // cliff-time, revenue-at-risk
	CliffHorizonYears      float64 `mapstructure:"cliff_horizon_years"`
	RevenueScaleBillions   float64 `mapstructure:"revenue_scale_billions"`
	StatusBonus            float64 `mapstructure:"status_bonus"`
	ExpiredFloorWeight     float64 `mapstructure:"expired_floor_weight"`
	RawWeightFloor         float64 `mapstructure:"raw_weight_floor"`
	FallbackRevenue        float64 `mapstructure:"fallback_revenue_billions"`
	DiversificationPenalty float64 `mapstructure:"diversification_penalty"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load 加载配置
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量替换
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Storage.Redis.Password = os.ExpandEnv(config.Storage.Redis.Password)

	// 设置默认值
	setDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(cfg *Config) {
	if cfg.System.ShutdownTimeout == 0 {
		cfg.System.ShutdownTimeout = 30 * time.Second
	}
	if cfg.System.UniversePath == "" {
		cfg.System.UniversePath = "config/universe.yaml"
	}
	if cfg.Temporal.Worker.MaxConcurrentActivities == 0 {
		cfg.Temporal.Worker.MaxConcurrentActivities = 20
	}
	if cfg.Temporal.Worker.MaxConcurrentWorkflows == 0 {
		cfg.Temporal.Worker.MaxConcurrentWorkflows = 10
	}
	if cfg.Storage.Redis.PoolSize == 0 {
		cfg.Storage.Redis.PoolSize = 100
	}
	if cfg.MarketData.Provider == "" {
		cfg.MarketData.Provider = "csv"
	}
	if cfg.MarketData.Timeout == 0 {
		cfg.MarketData.Timeout = 120 * time.Second
	}
	if cfg.MarketData.PriceCacheTTL == 0 {
		cfg.MarketData.PriceCacheTTL = 24 * time.Hour
	}
	if cfg.Observability.Metrics.Port == 0 {
		cfg.Observability.Metrics.Port = 9090
	}
	if cfg.Backtest.RebalanceFrequency == "" {
		cfg.Backtest.RebalanceFrequency = "quarterly"
	}
	if cfg.Backtest.RebalanceToleranceD == 0 {
		cfg.Backtest.RebalanceToleranceD = 3
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100000
	}
	if cfg.Backtest.TransactionCostRate == 0 {
		cfg.Backtest.TransactionCostRate = 0.001
	}
	if cfg.Backtest.MaxWeight == 0 {
		cfg.Backtest.MaxWeight = 0.20
	}
	if cfg.Backtest.BenchmarkTicker == "" {
		cfg.Backtest.BenchmarkTicker = "SPY"
	}
	if cfg.Backtest.RiskFreeRate == 0 {
		cfg.Backtest.RiskFreeRate = 0.02
	}
	if cfg.Risk.Strategy == "" {
		cfg.Risk.Strategy = "cliff-time"
	}
	if cfg.Risk.CliffHorizonYears == 0 {
		cfg.Risk.CliffHorizonYears = 3.0
	}
	if cfg.Risk.RevenueScaleBillions == 0 {
		cfg.Risk.RevenueScaleBillions = 5.0
	}
	if cfg.Risk.StatusBonus == 0 {
		cfg.Risk.StatusBonus = 1.2
	}
	if cfg.Risk.ExpiredFloorWeight == 0 {
		cfg.Risk.ExpiredFloorWeight = 0.001
	}
	if cfg.Risk.RawWeightFloor == 0 {
		cfg.Risk.RawWeightFloor = 0.01
	}
	if cfg.Risk.FallbackRevenue == 0 {
		cfg.Risk.FallbackRevenue = 50.0
	}
	if cfg.Risk.DiversificationPenalty == 0 {
		cfg.Risk.DiversificationPenalty = 0.1
	}
}

// Validate 校验枚举取值与约束
func (c *Config) Validate() error {
	switch c.Backtest.RebalanceFrequency {
	case "monthly", "quarterly", "annually":
	default:
		return fmt.Errorf("invalid rebalance_frequency: %s", c.Backtest.RebalanceFrequency)
	}

	switch c.Risk.Strategy {
	case "cliff-time", "revenue-at-risk":
	default:
		return fmt.Errorf("invalid risk strategy: %s", c.Risk.Strategy)
	}

	if c.Backtest.MinWeight < 0 || c.Backtest.MaxWeight > 1 || c.Backtest.MinWeight > c.Backtest.MaxWeight {
		return fmt.Errorf("invalid weight limits: min=%.4f max=%.4f", c.Backtest.MinWeight, c.Backtest.MaxWeight)
	}

	return nil
}
