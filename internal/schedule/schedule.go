// 再平衡日历调度
package schedule

import (
	"fmt"
	"time"
)

// Frequency 再平衡频率
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// ParseFrequency 解析频率字符串
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Monthly, Quarterly, Annually:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency: %s", s)
	}
}

// Schedule 回测区间内的再平衡日期序列
type Schedule struct {
	Dates []time.Time
}

// Build 生成 [start, end] 内的再平衡日期，序列含 start 本身
// 季度模式在 start 之后跳到下一个季度末月（3/6/9/12）继续
func Build(start, end time.Time, freq Frequency) (Schedule, error) {
	if end.Before(start) {
		return Schedule{}, fmt.Errorf("schedule end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	dates := []time.Time{start}
	current := start

	for {
		var err error
		current, err = next(current, freq)
		if err != nil {
			return Schedule{}, err
		}
		if current.After(end) {
			break
		}
		dates = append(dates, current)
	}

	return Schedule{Dates: dates}, nil
}

// next 给定日期之后的下一个再平衡日
func next(t time.Time, freq Frequency) (time.Time, error) {
	year, month, day := t.Year(), int(t.Month()), t.Day()

	switch freq {
	case Monthly:
		month++
		if month > 12 {
			month = 1
			year++
		}
	case Quarterly:
		// 跳到下一个季度末月
		switch {
		case month < 3:
			month = 3
		case month < 6:
			month = 6
		case month < 9:
			month = 9
		case month < 12:
			month = 12
		default:
			month = 3
			year++
		}
	case Annually:
		year++
	default:
		return time.Time{}, fmt.Errorf("unknown rebalance frequency: %s", freq)
	}

	return clampDay(year, month, day, t.Location()), nil
}

// clampDay 目标月份天数不足时压到月末（1月31日 → 2月28日）
func clampDay(year, month, day int, loc *time.Location) time.Time {
	last := daysInMonth(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

func daysInMonth(year, month int) int {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// IsRebalanceDay 判断交易日是否落在某个再平衡日的容差窗口内
// 容差用于吸收周末与节假日：计划日停市时顺延到窗口内最近的交易日
// 每个计划日只触发一次由调用方（模拟器）保证
func (s Schedule) IsRebalanceDay(day time.Time, toleranceDays int) (time.Time, bool) {
	for _, d := range s.Dates {
		diff := day.Sub(d).Hours() / 24
		if diff < 0 {
			diff = -diff
		}
		if diff <= float64(toleranceDays) {
			return d, true
		}
	}
	return time.Time{}, false
}
