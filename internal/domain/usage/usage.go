// Package usage describes embedding token consumption against the configured budget.
package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period, defaulting to month.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, true
	case PeriodDay:
		return PeriodDay, true
	default:
		return "", false
	}
}

// Report is embedding token usage for one budget period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	tokensUsed  int64
	tokensLimit int64 // 0 = unlimited
	remaining   int64 // -1 = unlimited
}

// NewReport creates a usage report. Timestamps are unix millis.
func NewReport(period Period, start, end, used, limit, remaining int64) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		tokensUsed:  used,
		tokensLimit: limit,
		remaining:   remaining,
	}
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end, which is also when the budget resets.
func (r Report) PeriodEnd() int64 { return r.periodEnd }

// TokensUsed returns tokens consumed in the period.
func (r Report) TokensUsed() int64 { return r.tokensUsed }

// TokensLimit returns the token cap, 0 if unlimited.
func (r Report) TokensLimit() int64 { return r.tokensLimit }

// TokensRemaining returns tokens left, -1 if unlimited.
func (r Report) TokensRemaining() int64 { return r.remaining }

// Unlimited reports whether no cap is configured.
func (r Report) Unlimited() bool { return r.tokensLimit == 0 }

// IsExhausted reports whether the budget is spent.
func (r Report) IsExhausted() bool { return r.tokensLimit > 0 && r.remaining <= 0 }
