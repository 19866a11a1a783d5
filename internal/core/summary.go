package core

import "time"

// CategoryStats is the per-bucket rollup shown on the category grid.
type CategoryStats struct {
	Total  Money `json:"total"`
	Unpaid Money `json:"unpaid"`
}

// StatsForCategory sums the entries referencing categoryID. Total covers every
// entry; Unpaid sums the outstanding remainder of entries that are not fully
// paid, so a partial entry contributes what it still owes.
func StatsForCategory(entries []Entry, categoryID string) CategoryStats {
	var stats CategoryStats
	for _, e := range entries {
		if e.CategoryID != categoryID {
			continue
		}
		stats.Total.Cents += e.Amount.Cents
		if e.Status != StatusPaid {
			stats.Unpaid.Cents += e.Amount.Cents - e.PaidAmount.Cents
		}
	}
	return stats
}

// Summarize folds the collections into the dashboard summary for the given
// active month. TodayTotal matches the calendar day of today regardless of
// the active month. Bank balance is a point-in-time snapshot summed over all
// accounts, deliberately not filtered by date.
func Summarize(entries []Entry, banks []BankAccount, month time.Month, year int, today time.Time) SummaryData {
	var s SummaryData
	for _, e := range entries {
		if sameCalendarDay(e.Date, today) {
			s.TodayTotal.Cents += e.Amount.Cents
		}
		if e.Date.Month() == month && e.Date.Year() == year {
			s.MonthTotal.Cents += e.Amount.Cents
			s.UnpaidTotal.Cents += e.Amount.Cents - e.PaidAmount.Cents
			s.PaidTotal.Cents += e.PaidAmount.Cents
		}
	}
	for _, b := range banks {
		s.BankBalance.Cents += b.Balance.Cents
	}
	s.NetPosition.Cents = s.BankBalance.Cents - s.UnpaidTotal.Cents
	return s
}

// SettlementProgress is the cleared share of the month's debt as a rounded
// percentage in [0, 100]. A zero denominator yields 0.
func SettlementProgress(unpaid, paid Money) int {
	total := unpaid.Cents + paid.Cents
	if total <= 0 {
		return 0
	}
	return int((paid.Cents*100 + total/2) / total)
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
