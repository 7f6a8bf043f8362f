package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

type activityRow struct {
	Date          string `db:"date"`
	CardsReviewed int    `db:"cards_reviewed"`
	CardsCorrect  int    `db:"cards_correct"`
	SecondsSpent  int    `db:"seconds_spent"`
}

func activitiesFromRows(rows []activityRow) ([]domain.DailyActivity, error) {
	out := make([]domain.DailyActivity, 0, len(rows))
	for _, r := range rows {
		d, err := domain.ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DailyActivity{
			Date:          d,
			CardsReviewed: r.CardsReviewed,
			CardsCorrect:  r.CardsCorrect,
			SecondsSpent:  r.SecondsSpent,
		})
	}
	return out, nil
}

// AddDailyActivity adds one review to the day's totals, creating the row on
// the first review of the day.
func (q *Queries) AddDailyActivity(ctx context.Context, day time.Time, correct bool, seconds int) error {
	c := 0
	if correct {
		c = 1
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO daily_activity (date, cards_reviewed, cards_correct, seconds_spent)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			cards_reviewed = cards_reviewed + 1,
			cards_correct = cards_correct + excluded.cards_correct,
			seconds_spent = seconds_spent + excluded.seconds_spent
	`, domain.FormatDate(day), c, seconds)
	if err != nil {
		return fmt.Errorf("failed to record daily activity for %s: %w", domain.FormatDate(day), err)
	}
	return nil
}

// ListDailyActivity returns cached daily totals between since and until
// inclusive, oldest first.
func (q *Queries) ListDailyActivity(ctx context.Context, since, until time.Time) ([]domain.DailyActivity, error) {
	var rows []activityRow
	err := q.sel(ctx, &rows, `
		SELECT date, cards_reviewed, cards_correct, seconds_spent
		FROM daily_activity
		WHERE date >= ? AND date <= ?
		ORDER BY date
	`, domain.FormatDate(since), domain.FormatDate(until))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily activity: %w", err)
	}
	return activitiesFromRows(rows)
}

// ActiveDates lists every cached date with at least one review, oldest first.
func (q *Queries) ActiveDates(ctx context.Context) ([]time.Time, error) {
	var raw []string
	if err := q.sel(ctx, &raw, `SELECT date FROM daily_activity WHERE cards_reviewed > 0 ORDER BY date`); err != nil {
		return nil, fmt.Errorf("failed to list active dates: %w", err)
	}
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// RebuildDailyActivity replaces the cache with totals recomputed from the
// ledger and returns the number of days written.
func (q *Queries) RebuildDailyActivity(ctx context.Context) (int64, error) {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM daily_activity`); err != nil {
		return 0, fmt.Errorf("failed to clear daily activity: %w", err)
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO daily_activity (date, cards_reviewed, cards_correct, seconds_spent)
		SELECT review_date,
			COUNT(*),
			COALESCE(SUM(CASE WHEN quality >= 3 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(elapsed_seconds), 0)
		FROM review_events
		GROUP BY review_date
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild daily activity: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAllDailyActivity clears the cache.
func (q *Queries) DeleteAllDailyActivity(ctx context.Context) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM daily_activity`); err != nil {
		return fmt.Errorf("failed to clear daily activity: %w", err)
	}
	return nil
}
