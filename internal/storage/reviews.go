package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

type reviewRow struct {
	ID             int64         `db:"id"`
	CardID         int64         `db:"card_id"`
	Quality        int           `db:"quality"`
	ReviewedAt     time.Time     `db:"reviewed_at"`
	ReviewDate     string        `db:"review_date"`
	ElapsedSeconds sql.NullInt64 `db:"elapsed_seconds"`
	EaseBefore     float64       `db:"ease_before"`
	EaseAfter      float64       `db:"ease_after"`
	IntervalBefore int           `db:"interval_before"`
	IntervalAfter  int           `db:"interval_after"`
}

func (r reviewRow) toDomain() (domain.ReviewEvent, error) {
	date, err := domain.ParseDate(r.ReviewDate)
	if err != nil {
		return domain.ReviewEvent{}, fmt.Errorf("review event %d: %w", r.ID, err)
	}
	e := domain.ReviewEvent{
		ID:             r.ID,
		CardID:         r.CardID,
		Quality:        r.Quality,
		ReviewedAt:     r.ReviewedAt,
		ReviewDate:     date,
		EaseBefore:     r.EaseBefore,
		EaseAfter:      r.EaseAfter,
		IntervalBefore: r.IntervalBefore,
		IntervalAfter:  r.IntervalAfter,
	}
	if r.ElapsedSeconds.Valid {
		s := int(r.ElapsedSeconds.Int64)
		e.ElapsedSeconds = &s
	}
	return e, nil
}

// InsertReviewEvent appends an event to the review ledger and returns its ID.
func (q *Queries) InsertReviewEvent(ctx context.Context, e domain.ReviewEvent) (int64, error) {
	var elapsed sql.NullInt64
	if e.ElapsedSeconds != nil {
		elapsed = sql.NullInt64{Int64: int64(*e.ElapsedSeconds), Valid: true}
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO review_events (card_id, quality, reviewed_at, review_date, elapsed_seconds,
			ease_before, ease_after, interval_before, interval_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.CardID,
		e.Quality,
		e.ReviewedAt,
		domain.FormatDate(e.ReviewDate),
		elapsed,
		e.EaseBefore,
		e.EaseAfter,
		e.IntervalBefore,
		e.IntervalAfter,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert review event for card %d: %w", e.CardID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for review event: %w", err)
	}
	return id, nil
}

// ListReviewEvents returns ledger events between since and until inclusive,
// newest first. A cardID of zero matches every card and a limit of zero or
// less returns every match.
func (q *Queries) ListReviewEvents(ctx context.Context, cardID int64, since, until time.Time, limit int) ([]domain.ReviewEvent, error) {
	query := `
		SELECT id, card_id, quality, reviewed_at, review_date, elapsed_seconds,
			ease_before, ease_after, interval_before, interval_after
		FROM review_events
		WHERE review_date >= ? AND review_date <= ?`
	args := []any{domain.FormatDate(since), domain.FormatDate(until)}
	if cardID != 0 {
		query += ` AND card_id = ?`
		args = append(args, cardID)
	}
	query += ` ORDER BY reviewed_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []reviewRow
	if err := q.sel(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list review events: %w", err)
	}
	events := make([]domain.ReviewEvent, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// CountReviewEvents counts the whole ledger.
func (q *Queries) CountReviewEvents(ctx context.Context) (int, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM review_events`); err != nil {
		return 0, fmt.Errorf("failed to count review events: %w", err)
	}
	return n, nil
}

// DeleteAllReviewEvents truncates the ledger.
func (q *Queries) DeleteAllReviewEvents(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM review_events`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete review events: %w", err)
	}
	return res.RowsAffected()
}

// ReviewedDates lists the distinct calendar dates present in the ledger,
// oldest first.
func (q *Queries) ReviewedDates(ctx context.Context) ([]time.Time, error) {
	var raw []string
	if err := q.sel(ctx, &raw, `SELECT DISTINCT review_date FROM review_events ORDER BY review_date`); err != nil {
		return nil, fmt.Errorf("failed to list review dates: %w", err)
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

// AggregateLedger derives per-day totals straight from the ledger, oldest first.
func (q *Queries) AggregateLedger(ctx context.Context) ([]domain.DailyActivity, error) {
	var rows []activityRow
	err := q.sel(ctx, &rows, `
		SELECT review_date AS date,
			COUNT(*) AS cards_reviewed,
			COALESCE(SUM(CASE WHEN quality >= 3 THEN 1 ELSE 0 END), 0) AS cards_correct,
			COALESCE(SUM(elapsed_seconds), 0) AS seconds_spent
		FROM review_events
		GROUP BY review_date
		ORDER BY review_date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate review ledger: %w", err)
	}
	return activitiesFromRows(rows)
}
