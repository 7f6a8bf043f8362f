// Package analytics derives day-level study statistics. Every function is a
// pure computation over rows already loaded from the store.
package analytics

import (
	"sort"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

// StreakSummary describes runs of consecutive study days.
type StreakSummary struct {
	Current        int        `json:"current"`
	Longest        int        `json:"longest"`
	LastReviewDate *time.Time `json:"last_review_date,omitempty"`
}

// Streak computes the current and longest run of consecutive calendar days in
// active. The current run ends today when today is active and yesterday
// otherwise; any earlier gap breaks it.
func Streak(active []time.Time, today time.Time) StreakSummary {
	days := uniqueDays(active)
	if len(days) == 0 {
		return StreakSummary{}
	}

	last := days[len(days)-1]
	summary := StreakSummary{LastReviewDate: &last}

	run := 1
	summary.Longest = 1
	for i := 1; i < len(days); i++ {
		if domain.DaysBetween(days[i-1], days[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > summary.Longest {
			summary.Longest = run
		}
	}

	set := make(map[time.Time]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	cursor := dayKey(today)
	if !set[cursor] {
		cursor = domain.AddDays(cursor, -1)
	}
	for set[cursor] {
		summary.Current++
		cursor = domain.AddDays(cursor, -1)
	}
	return summary
}

// uniqueDays sorts and de-duplicates calendar dates.
func uniqueDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = dayKey(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// dayKey strips any clock or zone from a calendar date so it can key a map.
func dayKey(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
