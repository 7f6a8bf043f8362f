package analytics

import (
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

// DayCount is a number attached to a calendar date.
type DayCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Forecast expands per-date counts keyed by YYYY-MM-DD into a zero-filled
// series covering today and the following days-1 dates.
func Forecast(counts map[string]int, today time.Time, days int) []DayCount {
	out := make([]DayCount, 0, days)
	for i := 0; i < days; i++ {
		d := domain.AddDays(today, i)
		out = append(out, DayCount{Date: d, Count: counts[domain.FormatDate(d)]})
	}
	return out
}

// RetentionBucket is the success rate of reviews made at a given interval.
type RetentionBucket struct {
	Label   string  `json:"label"`
	Reviews int     `json:"reviews"`
	Correct int     `json:"correct"`
	Rate    float64 `json:"rate"`
}

var retentionLabels = []string{"new", "1d", "2-6d", "7-21d", "22d+"}

func retentionIndex(interval int) int {
	switch {
	case interval <= 0:
		return 0
	case interval == 1:
		return 1
	case interval <= 6:
		return 2
	case interval <= 21:
		return 3
	default:
		return 4
	}
}

// Retention buckets review events by the interval the card had going into the
// review and reports the share of successful recalls in each bucket. Every
// bucket is present, empty ones with a zero rate.
func Retention(events []domain.ReviewEvent) []RetentionBucket {
	buckets := make([]RetentionBucket, len(retentionLabels))
	for i, l := range retentionLabels {
		buckets[i].Label = l
	}
	for _, e := range events {
		b := &buckets[retentionIndex(e.IntervalBefore)]
		b.Reviews++
		if e.Correct() {
			b.Correct++
		}
	}
	for i := range buckets {
		if buckets[i].Reviews > 0 {
			buckets[i].Rate = float64(buckets[i].Correct) / float64(buckets[i].Reviews)
		}
	}
	return buckets
}

// HeatCell is one day of the activity heatmap. Level runs from 0 (no reviews)
// to 4 (at least as busy as the busiest day in range).
type HeatCell struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
	Level int       `json:"level"`
}

// Heatmap lays out the last days of activity ending today, oldest first.
func Heatmap(activity []domain.DailyActivity, today time.Time, days int) []HeatCell {
	byDate := make(map[string]int, len(activity))
	for _, a := range activity {
		byDate[domain.FormatDate(a.Date)] = a.CardsReviewed
	}

	cells := make([]HeatCell, 0, days)
	busiest := 0
	for i := days - 1; i >= 0; i-- {
		d := domain.AddDays(today, -i)
		n := byDate[domain.FormatDate(d)]
		if n > busiest {
			busiest = n
		}
		cells = append(cells, HeatCell{Date: d, Count: n})
	}
	if busiest == 0 {
		return cells
	}
	for i := range cells {
		if cells[i].Count > 0 {
			// ceil(4 * count / busiest)
			cells[i].Level = (4*cells[i].Count + busiest - 1) / busiest
		}
	}
	return cells
}

// WeeklySummary totals the seven days ending today.
type WeeklySummary struct {
	Reviews        int     `json:"reviews"`
	Correct        int     `json:"correct"`
	Accuracy       float64 `json:"accuracy"`
	AverageSeconds float64 `json:"average_seconds"`
	ActiveDays     int     `json:"active_days"`
}

// Weekly summarises activity between today-6 and today.
func Weekly(activity []domain.DailyActivity, today time.Time) WeeklySummary {
	from := domain.AddDays(today, -6)
	var s WeeklySummary
	seconds := 0
	for _, a := range activity {
		if a.Date.Before(from) || a.Date.After(today) {
			continue
		}
		s.Reviews += a.CardsReviewed
		s.Correct += a.CardsCorrect
		seconds += a.SecondsSpent
		if a.CardsReviewed > 0 {
			s.ActiveDays++
		}
	}
	if s.Reviews > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Reviews)
		s.AverageSeconds = float64(seconds) / float64(s.Reviews)
	}
	return s
}

// HistoryDay is one day of the review history chart.
type HistoryDay struct {
	Date           time.Time `json:"date"`
	Reviews        int       `json:"reviews"`
	Correct        int       `json:"correct"`
	AverageQuality float64   `json:"average_quality"`
}

// History groups review events per day over the last days ending today,
// oldest first. Days without reviews are omitted.
func History(events []domain.ReviewEvent, today time.Time, days int) []HistoryDay {
	from := domain.AddDays(today, -(days - 1))
	type acc struct {
		reviews, correct, quality int
	}
	byDate := make(map[string]*acc)
	for _, e := range events {
		if e.ReviewDate.Before(from) || e.ReviewDate.After(today) {
			continue
		}
		key := domain.FormatDate(e.ReviewDate)
		a, ok := byDate[key]
		if !ok {
			a = &acc{}
			byDate[key] = a
		}
		a.reviews++
		a.quality += e.Quality
		if e.Correct() {
			a.correct++
		}
	}

	var out []HistoryDay
	for i := 0; i < days; i++ {
		d := domain.AddDays(from, i)
		a, ok := byDate[domain.FormatDate(d)]
		if !ok {
			continue
		}
		out = append(out, HistoryDay{
			Date:           d,
			Reviews:        a.reviews,
			Correct:        a.correct,
			AverageQuality: float64(a.quality) / float64(a.reviews),
		})
	}
	return out
}

// Inconsistency is a date on which the cached daily totals disagree with the
// totals derived from the ledger.
type Inconsistency struct {
	Date   time.Time            `json:"date"`
	Cached domain.DailyActivity `json:"cached"`
	Ledger domain.DailyActivity `json:"ledger"`
}

// Compare lists the dates where cached and ledger totals differ, oldest first.
// A date present on one side only is compared against an empty record.
func Compare(cached, ledger []domain.DailyActivity) []Inconsistency {
	index := func(rows []domain.DailyActivity) map[string]domain.DailyActivity {
		m := make(map[string]domain.DailyActivity, len(rows))
		for _, r := range rows {
			m[domain.FormatDate(r.Date)] = r
		}
		return m
	}
	c, l := index(cached), index(ledger)

	var dates []time.Time
	for _, r := range cached {
		dates = append(dates, r.Date)
	}
	for _, r := range ledger {
		if _, ok := c[domain.FormatDate(r.Date)]; !ok {
			dates = append(dates, r.Date)
		}
	}

	var out []Inconsistency
	for _, d := range uniqueDays(dates) {
		key := domain.FormatDate(d)
		cr, lr := c[key], l[key]
		cr.Date, lr.Date = d, d
		if cr != lr {
			out = append(out, Inconsistency{Date: d, Cached: cr, Ledger: lr})
		}
	}
	return out
}
