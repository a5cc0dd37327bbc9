package sharetime

import (
	"fmt"
)

// Trend 是周与周之间日均在线时长的变化趋势
type Trend int8

const (
	TrendDecreasing Trend = -1
	TrendStable     Trend = 0
	TrendIncreasing Trend = 1
)

// trendTolerance 是判定为持平的容差，单位为小时
const trendTolerance = 1.0

// classifyTrend 比较新旧两个周日均值（小时）。
// 差值在容差以内（含边界）视为持平。
func classifyTrend(previous, current float64) Trend {
	switch {
	case current >= previous-trendTolerance && current <= previous+trendTolerance:
		return TrendStable
	case current > previous:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

func (t Trend) String() string {
	switch t {
	case TrendDecreasing:
		return "decreasing"
	case TrendStable:
		return "stable"
	case TrendIncreasing:
		return "increasing"
	default:
		return fmt.Sprintf("Trend(%d)", int8(t))
	}
}

// MarshalText 让趋势在JSON中以字符串形式出现
func (t Trend) MarshalText() ([]byte, error) {
	switch t {
	case TrendDecreasing, TrendStable, TrendIncreasing:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("未知的趋势值: %d", int8(t))
	}
}

// UnmarshalText 解析 MarshalText 的输出
func (t *Trend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "decreasing":
		*t = TrendDecreasing
	case "stable":
		*t = TrendStable
	case "increasing":
		*t = TrendIncreasing
	default:
		return fmt.Errorf("未知的趋势: %q", text)
	}
	return nil
}
