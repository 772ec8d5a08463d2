package market

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TimeLayout is the display layout for timestamps.
const TimeLayout = "2006-01-02 15:04:05"

var printer = message.NewPrinter(language.English)

// Money formats v with thousands grouping and the given decimals, e.g.
// $1,234.5678.
func Money(v float64, places int) string {
	return "$" + Grouped(v, places)
}

// Grouped formats v with thousands grouping.
func Grouped(v float64, places int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", places), v)
}

// Percent formats a signed percentage with two decimals.
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// Compact abbreviates large values with B, M or K and two decimals.
func Compact(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatMillis renders a Unix millisecond timestamp in local time.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format(TimeLayout)
}

// FormatMillisOr renders ms, or fallback when it is zero.
func FormatMillisOr(ms int64, fallback string) string {
	if ms == 0 {
		return fallback
	}
	return FormatMillis(ms)
}

// TrendEmoji marks the direction of a change.
func TrendEmoji(change float64) string {
	switch {
	case change > 0:
		return "🟢"
	case change < 0:
		return "🔴"
	}
	return "⚪"
}

// countdown formats the time until the millisecond deadline as HH:MM:SS, or
// HH:MM when short is set. A past deadline yields settling.
func countdown(now time.Time, deadlineMillis int64, short bool) string {
	remaining := time.UnixMilli(deadlineMillis).Sub(now)
	if remaining <= 0 {
		return "settling"
	}
	secs := int64(math.Floor(remaining.Seconds()))
	h, m, sec := secs/3600, (secs%3600)/60, secs%60
	if short {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
