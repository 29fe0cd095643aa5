// Package savings computes derived sobriety-savings figures: elapsed sober
// days, the running total saved, and progress toward a goal amount.
package savings

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysSober returns the number of whole days elapsed between start and now.
// A start date in the future counts as zero days.
func DaysSober(start, now time.Time) int {
	if start.IsZero() || !now.After(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}

// Total returns the amount saved for the given daily target over days days.
func Total(dailyTarget int64, days int) int64 {
	if dailyTarget <= 0 || days <= 0 {
		return 0
	}
	return dailyTarget * int64(days)
}

// GoalProgress returns the percentage of target covered by total, rounded to
// one decimal place and clamped to [0, 100]. A non-positive target yields 0.
func GoalProgress(total, target int64) decimal.Decimal {
	if target <= 0 || total <= 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(total).
		Div(decimal.NewFromInt(target)).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	hundred := decimal.NewFromInt(100)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
