// 历史快照管理
// 回测只能使用截至回测日已存在的专利信息，
// 因此按快照日期组织多份 Orange Book 数据，取最近一份不晚于分析日的快照
package orangebook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Snapshot 单个日期的 Orange Book 快照
type Snapshot struct {
	Date     time.Time
	products []Product
	patents  []Patent

	applIndex map[string][]Patent
}

// NewSnapshot 构建快照并建立 Appl_No 索引
func NewSnapshot(date time.Time, products []Product, patents []Patent) *Snapshot {
	s := &Snapshot{
		Date:      date,
		products:  products,
		patents:   patents,
		applIndex: make(map[string][]Patent),
	}
	for _, p := range patents {
		s.applIndex[p.ApplNo] = append(s.applIndex[p.ApplNo], p)
	}
	return s
}

// PatentCount 快照内专利记录数
func (s *Snapshot) PatentCount() int {
	return len(s.patents)
}

// drugPatents 商品名子串匹配产品，再经 Appl_No 关联专利
func (s *Snapshot) drugPatents(drugName string) []Patent {
	upper := strings.ToUpper(drugName)
	seen := make(map[string]bool)
	var out []Patent
	for _, p := range s.products {
		if !strings.Contains(p.TradeName, upper) || seen[p.ApplNo] {
			continue
		}
		seen[p.ApplNo] = true
		out = append(out, s.applIndex[p.ApplNo]...)
	}
	return out
}

// NextExpiry 分析日之后最早的专利到期日
// 回测视角下关心的是下一个悬崖，而非保护期的终点
func (s *Snapshot) NextExpiry(drugName string, asOf time.Time) (*time.Time, bool) {
	var next *time.Time
	for _, p := range s.drugPatents(drugName) {
		if p.Expiry == nil || !p.Expiry.After(asOf) {
			continue
		}
		if next == nil || p.Expiry.Before(*next) {
			next = p.Expiry
		}
	}
	return next, next != nil
}

// LatestExpiry 全部专利中最晚的到期日，不区分是否已过期
// 实时分析视角使用：保护期终点
func (s *Snapshot) LatestExpiry(drugName string) (*time.Time, bool) {
	var latest *time.Time
	for _, p := range s.drugPatents(drugName) {
		if p.Expiry == nil {
			continue
		}
		if latest == nil || p.Expiry.After(*latest) {
			latest = p.Expiry
		}
	}
	return latest, latest != nil
}

// Store 多快照仓库，按日期升序保存
type Store struct {
	snapshots []*Snapshot
	logger    *zap.Logger
}

// NewStore 创建空仓库
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Add 加入快照并保持日期有序
func (st *Store) Add(s *Snapshot) {
	st.snapshots = append(st.snapshots, s)
	sort.Slice(st.snapshots, func(i, j int) bool {
		return st.snapshots[i].Date.Before(st.snapshots[j].Date)
	})
}

// Len 快照数
func (st *Store) Len() int {
	return len(st.snapshots)
}

// At 分析日对应的快照：最近一份不晚于分析日的，早于全部快照时取最早一份
func (st *Store) At(asOf time.Time) (*Snapshot, error) {
	if len(st.snapshots) == 0 {
		return nil, fmt.Errorf("no orange book snapshots loaded")
	}
	var chosen *Snapshot
	for _, s := range st.snapshots {
		if s.Date.After(asOf) {
			break
		}
		chosen = s
	}
	if chosen == nil {
		chosen = st.snapshots[0]
		st.logger.Warn("Analysis date precedes all snapshots, using earliest",
			zap.String("as_of", asOf.Format("2006-01-02")),
			zap.String("snapshot", chosen.Date.Format("2006-01-02")),
		)
	}
	return chosen, nil
}

// LoadDir 从 dir/<YYYY-MM-DD>/{products.txt,patent.txt} 加载指定日期的快照
func LoadDir(dir string, dates []string, logger *zap.Logger) (*Store, error) {
	store := NewStore(logger)
	for _, d := range dates {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot date %q: %w", d, err)
		}

		snapshotDir := filepath.Join(dir, d)
		products, err := loadProducts(filepath.Join(snapshotDir, "products.txt"))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", d, err)
		}
		patents, err := loadPatents(filepath.Join(snapshotDir, "patent.txt"))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", d, err)
		}

		s := NewSnapshot(date, products, patents)
		store.Add(s)
		logger.Info("Loaded orange book snapshot",
			zap.String("date", d),
			zap.Int("products", len(products)),
			zap.Int("patents", len(patents)),
		)
	}
	return store, nil
}

func loadProducts(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseProducts(f)
}

func loadPatents(path string) ([]Patent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePatents(f)
}
