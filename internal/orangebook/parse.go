// FDA Orange Book 波浪号分隔文件解析
package orangebook

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cliffalpha-ai/cliffalpha/pkg/metrics"
)

// Product products.txt 中的单行产品记录
type Product struct {
	TradeName string
	ApplNo    string
}

// Patent patent.txt 中的单行专利记录
// Expiry 为 nil 表示到期日字段无法解析，记录保留但不参与悬崖计算
type Patent struct {
	ApplNo string
	Expiry *time.Time
}

// 到期日字段在源文件中出现过的几种写法
var expiryLayouts = []string{
	"Jan 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"Jan _2, 2006",
}

// ParseExpiry 多格式尝试解析到期日，全部失败返回 nil
func ParseExpiry(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// newReader 波浪号分隔，字段数不定，引号宽松
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '~'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// headerIndex 表头列名 → 下标
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func field(record []string, idx map[string]int, name string) (string, bool) {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// ParseProducts 解析 products.txt
func ParseProducts(r io.Reader) ([]Product, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read products header: %w", err)
	}
	idx := headerIndex(header)
	if _, ok := idx["Trade_Name"]; !ok {
		return nil, fmt.Errorf("products file missing Trade_Name column")
	}

	var products []Product
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read products record: %w", err)
		}
		name, _ := field(record, idx, "Trade_Name")
		applNo, _ := field(record, idx, "Appl_No")
		if name == "" || applNo == "" {
			continue
		}
		products = append(products, Product{
			TradeName: strings.ToUpper(name),
			ApplNo:    applNo,
		})
	}
	return products, nil
}

// ParsePatents 解析 patent.txt，到期日无法解析的记录 Expiry 置 nil
func ParsePatents(r io.Reader) ([]Patent, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read patents header: %w", err)
	}
	idx := headerIndex(header)
	if _, ok := idx["Patent_Expire_Date_Text"]; !ok {
		return nil, fmt.Errorf("patents file missing Patent_Expire_Date_Text column")
	}

	var patents []Patent
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read patents record: %w", err)
		}
		applNo, _ := field(record, idx, "Appl_No")
		if applNo == "" {
			continue
		}
		raw, _ := field(record, idx, "Patent_Expire_Date_Text")
		expiry := ParseExpiry(raw)
		if expiry == nil && raw != "" {
			metrics.SkippedDrugRecords.WithLabelValues("unparseable_expiry").Inc()
		}
		patents = append(patents, Patent{ApplNo: applNo, Expiry: expiry})
	}
	return patents, nil
}
