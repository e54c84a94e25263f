package orangebook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSnapshot(date time.Time) *Snapshot {
	products := []Product{
		{TradeName: "ELIQUIS", ApplNo: "202155"},
		{TradeName: "STELARA", ApplNo: "125261"},
		{TradeName: "STELARA PEN", ApplNo: "125262"},
	}
	patents := []Patent{
		{ApplNo: "202155", Expiry: timePtr(2023, 2, 24)},
		{ApplNo: "202155", Expiry: timePtr(2026, 11, 21)},
		{ApplNo: "125261", Expiry: timePtr(2023, 9, 25)},
		{ApplNo: "125262", Expiry: timePtr(2024, 3, 1)},
		{ApplNo: "125262", Expiry: nil},
	}
	return NewSnapshot(date, products, patents)
}

func TestNextExpiryEarliestAfterAsOf(t *testing.T) {
	s := testSnapshot(time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	got, ok := s.NextExpiry("ELIQUIS", asOf)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 2, 24, 0, 0, 0, 0, time.UTC), *got)

	// 分析日越过第一个到期日后取下一个
	asOf = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, ok = s.NextExpiry("ELIQUIS", asOf)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 11, 21, 0, 0, 0, 0, time.UTC), *got)

	// 全部到期后无结果
	_, ok = s.NextExpiry("ELIQUIS", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestNextExpirySubstringMatch(t *testing.T) {
	s := testSnapshot(time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC))
	asOf := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	// STELARA 子串同时命中 STELARA 与 STELARA PEN，取两者中最早的
	got, ok := s.NextExpiry("STELARA", asOf)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 9, 25, 0, 0, 0, 0, time.UTC), *got)

	_, ok = s.NextExpiry("HUMIRA", asOf)
	assert.False(t, ok)
}

func TestLatestExpiry(t *testing.T) {
	s := testSnapshot(time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC))
	got, ok := s.LatestExpiry("ELIQUIS")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 11, 21, 0, 0, 0, 0, time.UTC), *got)
}

func TestStoreAt(t *testing.T) {
	store := NewStore(zap.NewNop())
	s2019 := testSnapshot(time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC))
	s2022 := testSnapshot(time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	store.Add(s2022)
	store.Add(s2019)

	tests := []struct {
		name string
		asOf time.Time
		want time.Time
	}{
		{"between snapshots uses earlier", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), s2019.Date},
		{"after latest uses latest", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s2022.Date},
		{"before all falls back to earliest", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), s2019.Date},
		{"exact snapshot date", time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), s2022.Date},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.At(tt.asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Date)
		})
	}
}

func TestStoreAtEmpty(t *testing.T) {
	store := NewStore(zap.NewNop())
	_, err := store.At(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
