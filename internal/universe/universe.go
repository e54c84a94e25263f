// 目标药物清单
// 重磅药物及其公司、营收规模由 YAML 维护，专利到期日优先取 Orange Book
package universe

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cliffalpha-ai/cliffalpha/internal/risk"
)

// DrugFact 单个药物的静态事实
// Expiry 为手工维护的到期日兜底，Orange Book 查询不到时使用
type DrugFact struct {
	Drug            string  `mapstructure:"drug"`
	Company         string  `mapstructure:"company"`
	Ticker          string  `mapstructure:"ticker"`
	RevenueBillions float64 `mapstructure:"revenue_billions"`
	Expiry          string  `mapstructure:"expiry"`
}

// Universe 药物清单与公司营收
type Universe struct {
	facts    []DrugFact
	revenues map[string]float64
	logger   *zap.Logger
}

// Load 从 YAML 文件加载清单
func Load(path string, logger *zap.Logger) (*Universe, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	var facts []DrugFact
	if err := v.UnmarshalKey("drugs", &facts); err != nil {
		return nil, fmt.Errorf("unmarshal drugs: %w", err)
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("universe file %s contains no drugs", path)
	}
	for i, f := range facts {
		if f.Drug == "" || f.Ticker == "" {
			return nil, fmt.Errorf("universe entry %d missing drug or ticker", i)
		}
	}

	raw := make(map[string]float64)
	if err := v.UnmarshalKey("company_revenues", &raw); err != nil {
		return nil, fmt.Errorf("unmarshal company_revenues: %w", err)
	}
	// viper 会把 map 键转成小写，统一按大写代码存取
	revenues := make(map[string]float64, len(raw))
	for ticker, rev := range raw {
		revenues[strings.ToUpper(ticker)] = rev
	}

	logger.Info("Loaded drug universe",
		zap.String("path", path),
		zap.Int("drugs", len(facts)),
		zap.Int("companies", len(revenues)),
	)
	return &Universe{facts: facts, revenues: revenues, logger: logger}, nil
}

// Facts 全部药物事实
func (u *Universe) Facts() []DrugFact {
	return u.facts
}

// Tickers 去重排序后的公司代码
func (u *Universe) Tickers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range u.facts {
		if !seen[f.Ticker] {
			seen[f.Ticker] = true
			out = append(out, f.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

// RevenueLookup 公司总营收查询，代码大小写不敏感
func (u *Universe) RevenueLookup() risk.RevenueLookup {
	return func(ticker string) (float64, bool) {
		v, ok := u.revenues[strings.ToUpper(ticker)]
		return v, ok
	}
}

// ExpiryLookup 药物到期日查询，未知返回 nil
type ExpiryLookup func(drugName string) *time.Time

// Records 生成指定分析日的风险记录
// 到期日优先经 lookup 取 Orange Book，缺失时退回清单里手工维护的日期，
// 两者都没有时 Expiry 置 nil 并标记 unknown
func (u *Universe) Records(asOf time.Time, lookup ExpiryLookup, horizonYears float64) []risk.DrugRecord {
	records := make([]risk.DrugRecord, 0, len(u.facts))
	for _, f := range u.facts {
		var expiry *time.Time
		if lookup != nil {
			expiry = lookup(f.Drug)
		}
		if expiry == nil && f.Expiry != "" {
			if t, err := time.Parse("2006-01-02", f.Expiry); err == nil {
				expiry = &t
			} else {
				u.logger.Warn("Unparseable manual expiry in universe file",
					zap.String("drug", f.Drug),
					zap.String("expiry", f.Expiry),
				)
			}
		}

		records = append(records, risk.DrugRecord{
			Drug:            f.Drug,
			Company:         f.Company,
			Ticker:          f.Ticker,
			RevenueBillions: f.RevenueBillions,
			Expiry:          expiry,
			Status:          deriveStatus(asOf, expiry, horizonYears),
		})
	}
	return records
}

// deriveStatus 按距到期年数打状态标签
func deriveStatus(asOf time.Time, expiry *time.Time, horizonYears float64) risk.Status {
	if expiry == nil {
		return risk.StatusUnknown
	}
	years := expiry.Sub(asOf).Hours() / 24 / 365.25
	switch {
	case years <= 0:
		return risk.StatusExpired
	case years <= horizonYears:
		return risk.StatusExpiringSoon
	default:
		return risk.StatusProtected
	}
}
