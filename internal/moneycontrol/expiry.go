package moneycontrol

import (
	"time"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

// expiryCandidates returns plausible MCX copper futures expiry dates for the
// contract trading on today: the last day of the current and next month,
// each followed by its nearest preceding weekday when it falls on a weekend.
// Dates before today are skipped; the result has no duplicates.
func expiryCandidates(today model.Date) []model.Date {
	t := today.Time()
	var out []model.Date
	seen := make(map[model.Date]bool)
	add := func(d model.Date) {
		if d.Before(today) || seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}

	for offset := 0; offset < 2; offset++ {
		last := lastDayOfMonth(t.Year(), t.Month()+time.Month(offset))
		add(model.NewDate(last))
		add(model.NewDate(precedingWeekday(last)))
	}
	return out
}

// lastDayOfMonth handles month overflow, so month 13 is January of the next year.
func lastDayOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// precedingWeekday returns t if it is a weekday, else the Friday before it.
func precedingWeekday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, -2)
	default:
		return t
	}
}
