package usage

// BudgetReader exposes the embedding provider's token budget: configured
// limits, tokens spent in the current day and month, and what is left.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
