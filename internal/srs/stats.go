package srs

import (
	"context"
	"time"

	"github.com/conorfennell/revise/internal/analytics"
	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/storage"
)

// MaxForecastDays bounds forecast and heatmap horizons.
const MaxForecastDays = 366

var (
	beginningOfTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	endOfTime       = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Streak reads the current and longest study streak from the daily totals.
func (s *Service) Streak(ctx context.Context) (analytics.StreakSummary, error) {
	dates, err := s.db.ActiveDates(ctx)
	if err != nil {
		return analytics.StreakSummary{}, classify(err)
	}
	return analytics.Streak(dates, s.Today()), nil
}

// StreakFromLedger computes the streak from review events alone, ignoring the
// daily totals cache.
func (s *Service) StreakFromLedger(ctx context.Context) (analytics.StreakSummary, error) {
	dates, err := s.db.ReviewedDates(ctx)
	if err != nil {
		return analytics.StreakSummary{}, classify(err)
	}
	return analytics.Streak(dates, s.Today()), nil
}

func checkHorizon(days int) error {
	if days < 1 || days > MaxForecastDays {
		return invalid("days must be between 1 and %d, got %d", MaxForecastDays, days)
	}
	return nil
}

// Forecast counts, for today and each of the following days-1 dates, the
// cards scheduled on exactly that date. Overdue cards are not counted.
func (s *Service) Forecast(ctx context.Context, days int) ([]analytics.DayCount, error) {
	if err := checkHorizon(days); err != nil {
		return nil, err
	}
	today := s.Today()
	counts, err := s.db.CountByNextReview(ctx, today, domain.AddDays(today, days-1))
	if err != nil {
		return nil, classify(err)
	}
	return analytics.Forecast(counts, today, days), nil
}

// Retention reports the recall success rate per interval bucket over the
// whole ledger.
func (s *Service) Retention(ctx context.Context) ([]analytics.RetentionBucket, error) {
	events, err := s.db.ListReviewEvents(ctx, 0, beginningOfTime, endOfTime, 0)
	if err != nil {
		return nil, classify(err)
	}
	return analytics.Retention(events), nil
}

// Heatmap returns per-day review counts for the last days ending today.
func (s *Service) Heatmap(ctx context.Context, days int) ([]analytics.HeatCell, error) {
	if err := checkHorizon(days); err != nil {
		return nil, err
	}
	today := s.Today()
	activity, err := s.db.ListDailyActivity(ctx, domain.AddDays(today, -(days-1)), today)
	if err != nil {
		return nil, classify(err)
	}
	return analytics.Heatmap(activity, today, days), nil
}

// Weekly summarises the last seven days.
func (s *Service) Weekly(ctx context.Context) (analytics.WeeklySummary, error) {
	today := s.Today()
	activity, err := s.db.ListDailyActivity(ctx, domain.AddDays(today, -6), today)
	if err != nil {
		return analytics.WeeklySummary{}, classify(err)
	}
	return analytics.Weekly(activity, today), nil
}

// History returns per-day review totals and average quality.
func (s *Service) History(ctx context.Context, days int) ([]analytics.HistoryDay, error) {
	if err := checkHorizon(days); err != nil {
		return nil, err
	}
	today := s.Today()
	events, err := s.db.ListReviewEvents(ctx, 0, domain.AddDays(today, -(days-1)), today, 0)
	if err != nil {
		return nil, classify(err)
	}
	return analytics.History(events, today, days), nil
}

// Maturity buckets cards by how established their schedule is.
func (s *Service) Maturity(ctx context.Context) (storage.Maturity, error) {
	m, err := s.db.MaturityCounts(ctx)
	if err != nil {
		return storage.Maturity{}, classify(err)
	}
	return m, nil
}

// CardStats is the dashboard summary of the card population.
type CardStats struct {
	Total         int     `json:"total"`
	Due           int     `json:"due"`
	Overdue       int     `json:"overdue"`
	New           int     `json:"new"`
	ReviewedToday int     `json:"reviewed_today"`
	Accuracy7d    float64 `json:"accuracy_7d"`
}

// Stats gathers the dashboard summary.
func (s *Service) Stats(ctx context.Context) (CardStats, error) {
	var st CardStats
	var err error
	if st.Total, err = s.db.CountCards(ctx, 0); err != nil {
		return CardStats{}, classify(err)
	}
	if st.Due, err = s.DueCount(ctx, 0); err != nil {
		return CardStats{}, err
	}
	if st.Overdue, err = s.OverdueCount(ctx, 0); err != nil {
		return CardStats{}, err
	}
	m, err := s.Maturity(ctx)
	if err != nil {
		return CardStats{}, err
	}
	st.New = m.New

	week, err := s.Weekly(ctx)
	if err != nil {
		return CardStats{}, err
	}
	st.Accuracy7d = week.Accuracy

	today := s.Today()
	activity, err := s.db.ListDailyActivity(ctx, today, today)
	if err != nil {
		return CardStats{}, classify(err)
	}
	for _, a := range activity {
		st.ReviewedToday += a.CardsReviewed
	}
	return st, nil
}

// RebuildDailyAggregates recomputes the daily totals cache from the ledger in
// one transaction and returns the number of days written. Running it twice
// yields identical rows.
func (s *Service) RebuildDailyAggregates(ctx context.Context) (int64, error) {
	var days int64
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		var err error
		days, err = tx.RebuildDailyActivity(ctx)
		return err
	})
	if err != nil {
		return 0, classify(err)
	}
	s.log.Info("Daily aggregates rebuilt", "days", days)
	return days, nil
}

// VerifyDailyAggregates lists the dates on which the daily totals cache
// disagrees with the ledger. Disagreement is not an error; the remedy is
// RebuildDailyAggregates.
func (s *Service) VerifyDailyAggregates(ctx context.Context) ([]analytics.Inconsistency, error) {
	cached, err := s.db.ListDailyActivity(ctx, beginningOfTime, endOfTime)
	if err != nil {
		return nil, classify(err)
	}
	ledger, err := s.db.AggregateLedger(ctx)
	if err != nil {
		return nil, classify(err)
	}
	diffs := analytics.Compare(cached, ledger)
	if len(diffs) > 0 {
		s.log.Warn("Daily aggregates disagree with the review ledger", "dates", len(diffs))
	}
	return diffs, nil
}
