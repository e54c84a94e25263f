package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		want    Frequency
		wantErr bool
	}{
		{"monthly", Monthly, false},
		{"quarterly", Quarterly, false},
		{"annually", Annually, false},
		{"weekly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQuarterlySingleYear(t *testing.T) {
	s, err := Build(date(2020, 1, 1), date(2020, 12, 31), Quarterly)
	require.NoError(t, err)

	// 起点在列，随后落在季度末月
	want := []time.Time{
		date(2020, 1, 1),
		date(2020, 3, 1),
		date(2020, 6, 1),
		date(2020, 9, 1),
		date(2020, 12, 1),
	}
	assert.Equal(t, want, s.Dates)
}

func TestBuildQuarterlyCrossYear(t *testing.T) {
	s, err := Build(date(2020, 11, 15), date(2021, 6, 30), Quarterly)
	require.NoError(t, err)

	want := []time.Time{
		date(2020, 11, 15),
		date(2020, 12, 15),
		date(2021, 3, 15),
		date(2021, 6, 15),
	}
	assert.Equal(t, want, s.Dates)
}

func TestBuildMonthlyIncludesStart(t *testing.T) {
	s, err := Build(date(2020, 1, 15), date(2020, 6, 30), Monthly)
	require.NoError(t, err)
	require.Len(t, s.Dates, 6)
	assert.Equal(t, date(2020, 1, 15), s.Dates[0])
	assert.Equal(t, date(2020, 6, 15), s.Dates[5])
}

func TestBuildMonthlyClampsShortMonths(t *testing.T) {
	// 1月31日顺延到 2 月时压到月末（2020 为闰年）
	s, err := Build(date(2020, 1, 31), date(2020, 2, 29), Monthly)
	require.NoError(t, err)
	require.Len(t, s.Dates, 2)
	assert.Equal(t, date(2020, 2, 29), s.Dates[1])
}

func TestBuildAnnually(t *testing.T) {
	s, err := Build(date(2020, 1, 1), date(2024, 12, 31), Annually)
	require.NoError(t, err)

	want := []time.Time{
		date(2020, 1, 1),
		date(2021, 1, 1),
		date(2022, 1, 1),
		date(2023, 1, 1),
		date(2024, 1, 1),
	}
	assert.Equal(t, want, s.Dates)
}

func TestBuildEndBeforeStart(t *testing.T) {
	_, err := Build(date(2021, 1, 1), date(2020, 1, 1), Quarterly)
	assert.Error(t, err)
}

func TestIsRebalanceDay(t *testing.T) {
	s := Schedule{Dates: []time.Time{date(2020, 3, 1), date(2020, 6, 1)}}

	tests := []struct {
		name      string
		day       time.Time
		tolerance int
		wantDate  time.Time
		wantHit   bool
	}{
		{"exact match", date(2020, 3, 1), 3, date(2020, 3, 1), true},
		{"within tolerance after", date(2020, 3, 3), 3, date(2020, 3, 1), true},
		{"within tolerance before", date(2020, 2, 27), 3, date(2020, 3, 1), true},
		{"outside tolerance", date(2020, 3, 5), 3, time.Time{}, false},
		{"zero tolerance off by one", date(2020, 6, 2), 0, time.Time{}, false},
		{"second scheduled date", date(2020, 5, 30), 3, date(2020, 6, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := s.IsRebalanceDay(tt.day, tt.tolerance)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, tt.wantDate, got)
			}
		})
	}
}
