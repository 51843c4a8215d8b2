package backtest

import (
	"sort"
	"time"

	"marlin/internal/domain"
)

// BuildCalendar derives the single timeline the engine iterates: the sorted,
// duplicate-free union of all bar dates across every symbol. A symbol with
// no bar on one of these dates simply contributes no price that day.
func BuildCalendar(bars map[string][]domain.Bar) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, series := range bars {
		for _, b := range series {
			seen[domain.Day(b.Date)] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
