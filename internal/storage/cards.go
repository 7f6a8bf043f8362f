package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

const cardColumns = `id, subject_id, question, answer, topic, content_hash, ease_factor, interval,
	repetitions, next_review, times_reviewed, times_correct, created_at, last_reviewed_at`

type cardRow struct {
	ID             int64        `db:"id"`
	SubjectID      int64        `db:"subject_id"`
	Question       string       `db:"question"`
	Answer         string       `db:"answer"`
	Topic          string       `db:"topic"`
	ContentHash    string       `db:"content_hash"`
	EaseFactor     float64      `db:"ease_factor"`
	Interval       int          `db:"interval"`
	Repetitions    int          `db:"repetitions"`
	NextReview     string       `db:"next_review"`
	TimesReviewed  int          `db:"times_reviewed"`
	TimesCorrect   int          `db:"times_correct"`
	CreatedAt      time.Time    `db:"created_at"`
	LastReviewedAt sql.NullTime `db:"last_reviewed_at"`
}

func (r cardRow) toDomain() (domain.Card, error) {
	next, err := domain.ParseDate(r.NextReview)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %d: %w", r.ID, err)
	}
	c := domain.Card{
		ID:            r.ID,
		SubjectID:     r.SubjectID,
		Question:      r.Question,
		Answer:        r.Answer,
		Topic:         r.Topic,
		Hash:          r.ContentHash,
		EaseFactor:    r.EaseFactor,
		Interval:      r.Interval,
		Repetitions:   r.Repetitions,
		NextReview:    next,
		TimesReviewed: r.TimesReviewed,
		TimesCorrect:  r.TimesCorrect,
		CreatedAt:     r.CreatedAt,
	}
	if r.LastReviewedAt.Valid {
		t := r.LastReviewedAt.Time
		c.LastReviewedAt = &t
	}
	return c, nil
}

func cardsFromRows(rows []cardRow) ([]domain.Card, error) {
	cards := make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// subjectClause appends an optional subject filter. A zero subjectID matches
// every subject.
func subjectClause(query string, args []any, subjectID int64) (string, []any) {
	if subjectID == 0 {
		return query, args
	}
	return query + " AND subject_id = ?", append(args, subjectID)
}

// InsertCard inserts a new card and returns its ID.
func (q *Queries) InsertCard(ctx context.Context, c domain.Card) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO cards (subject_id, question, answer, topic, content_hash, ease_factor,
			interval, repetitions, next_review, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.SubjectID,
		c.Question,
		c.Answer,
		c.Topic,
		c.Hash,
		c.EaseFactor,
		c.Interval,
		c.Repetitions,
		domain.FormatDate(c.NextReview),
		c.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for card: %w", err)
	}
	return id, nil
}

// FindCard retrieves a card by its ID.
func (q *Queries) FindCard(ctx context.Context, id int64) (domain.Card, error) {
	var r cardRow
	err := q.get(ctx, &r, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	if err != nil {
		if notFound(err) {
			return domain.Card{}, fmt.Errorf("card %d: %w", id, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to find card %d: %w", id, err)
	}
	return r.toDomain()
}

// FindCardByHash retrieves a subject's card by its content hash.
func (q *Queries) FindCardByHash(ctx context.Context, subjectID int64, hash string) (domain.Card, error) {
	var r cardRow
	err := q.get(ctx, &r, `SELECT `+cardColumns+` FROM cards WHERE subject_id = ? AND content_hash = ? LIMIT 1`,
		subjectID, hash)
	if err != nil {
		if notFound(err) {
			return domain.Card{}, fmt.Errorf("card with hash %s: %w", hash, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return r.toDomain()
}

// UpdateCardState writes a card's scheduling state and review counters.
func (q *Queries) UpdateCardState(ctx context.Context, c domain.Card) error {
	var last sql.NullTime
	if c.LastReviewedAt != nil {
		last = sql.NullTime{Time: *c.LastReviewedAt, Valid: true}
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE cards
		SET ease_factor = ?, interval = ?, repetitions = ?, next_review = ?,
			times_reviewed = ?, times_correct = ?, last_reviewed_at = ?
		WHERE id = ?
	`,
		c.EaseFactor,
		c.Interval,
		c.Repetitions,
		domain.FormatDate(c.NextReview),
		c.TimesReviewed,
		c.TimesCorrect,
		last,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card state for card %d: %w", c.ID, err)
	}
	return expectOne(res, "card", c.ID)
}

// UpdateCardContent replaces a card's text fields, leaving its schedule alone.
func (q *Queries) UpdateCardContent(ctx context.Context, c domain.Card) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE cards SET question = ?, answer = ?, topic = ?, content_hash = ?
		WHERE id = ?
	`, c.Question, c.Answer, c.Topic, c.Hash, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", c.ID, err)
	}
	return expectOne(res, "card", c.ID)
}

// DeleteCard removes a card together with its review events.
func (q *Queries) DeleteCard(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM review_events WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete review events of card %d: %w", id, err)
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return expectOne(res, "card", id)
}

// ListCards returns every card of a subject, or of all subjects for zero.
func (q *Queries) ListCards(ctx context.Context, subjectID int64) ([]domain.Card, error) {
	query, args := subjectClause(`SELECT `+cardColumns+` FROM cards WHERE 1 = 1`, nil, subjectID)
	var rows []cardRow
	if err := q.sel(ctx, &rows, query+` ORDER BY id`, args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cardsFromRows(rows)
}

// DueCards returns cards due on or before today, most overdue first, then
// hardest first. A limit of zero or less returns every due card.
func (q *Queries) DueCards(ctx context.Context, today time.Time, subjectID int64, limit int) ([]domain.Card, error) {
	query, args := subjectClause(`SELECT `+cardColumns+` FROM cards WHERE next_review <= ?`,
		[]any{domain.FormatDate(today)}, subjectID)
	query += ` ORDER BY next_review ASC, ease_factor ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []cardRow
	if err := q.sel(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return cardsFromRows(rows)
}

// CountDue counts cards due on or before today. With strict set only cards
// due before today are counted.
func (q *Queries) CountDue(ctx context.Context, today time.Time, subjectID int64, strict bool) (int, error) {
	op := "<="
	if strict {
		op = "<"
	}
	query, args := subjectClause(`SELECT COUNT(*) FROM cards WHERE next_review `+op+` ?`,
		[]any{domain.FormatDate(today)}, subjectID)

	var n int
	if err := q.get(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return n, nil
}

// SubjectCount pairs a subject with a number of cards.
type SubjectCount struct {
	SubjectID   int64  `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	Count       int    `db:"count" json:"count"`
}

// DueCountsBySubject groups the due cards by subject, largest group first.
func (q *Queries) DueCountsBySubject(ctx context.Context, today time.Time) ([]SubjectCount, error) {
	var counts []SubjectCount
	err := q.sel(ctx, &counts, `
		SELECT s.id AS subject_id, s.name AS subject_name, COUNT(c.id) AS count
		FROM subjects s
		JOIN cards c ON c.subject_id = s.id
		WHERE c.next_review <= ?
		GROUP BY s.id, s.name
		ORDER BY count DESC, s.name ASC
	`, domain.FormatDate(today))
	if err != nil {
		return nil, fmt.Errorf("failed to count due cards by subject: %w", err)
	}
	return counts, nil
}

// CountByNextReview counts cards per next-review date in [from, to].
func (q *Queries) CountByNextReview(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var rows []struct {
		Date  string `db:"next_review"`
		Count int    `db:"count"`
	}
	err := q.sel(ctx, &rows, `
		SELECT next_review, COUNT(*) AS count
		FROM cards
		WHERE next_review >= ? AND next_review <= ?
		GROUP BY next_review
	`, domain.FormatDate(from), domain.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to count cards by next review: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Date] = r.Count
	}
	return counts, nil
}

// SubjectTopic is a distinct topic label used by a subject's cards.
type SubjectTopic struct {
	SubjectID int64  `db:"subject_id"`
	Topic     string `db:"topic"`
}

// DistinctTopics lists the non-empty topic labels found on cards.
func (q *Queries) DistinctTopics(ctx context.Context, subjectID int64) ([]SubjectTopic, error) {
	query, args := subjectClause(`SELECT DISTINCT subject_id, topic FROM cards WHERE topic <> ''`, nil, subjectID)
	var topics []SubjectTopic
	if err := q.sel(ctx, &topics, query+` ORDER BY subject_id, topic`, args...); err != nil {
		return nil, fmt.Errorf("failed to list card topics: %w", err)
	}
	return topics, nil
}

// ResetCard returns a card to its initial scheduling state, due today.
func (q *Queries) ResetCard(ctx context.Context, id int64, today time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE cards SET ease_factor = ?, interval = ?, repetitions = 0, next_review = ?
		WHERE id = ?
	`, domain.DefaultEase, domain.DefaultInterval, domain.FormatDate(today), id)
	if err != nil {
		return fmt.Errorf("failed to reset card %d: %w", id, err)
	}
	return expectOne(res, "card", id)
}

// ResetAllCards resets every card. With clearCounters the lifetime counters
// and last review timestamps are cleared as well.
func (q *Queries) ResetAllCards(ctx context.Context, today time.Time, clearCounters bool) (int64, error) {
	query := `UPDATE cards SET ease_factor = ?, interval = ?, repetitions = 0, next_review = ?`
	if clearCounters {
		query += `, times_reviewed = 0, times_correct = 0, last_reviewed_at = NULL`
	}
	res, err := q.q.ExecContext(ctx, query, domain.DefaultEase, domain.DefaultInterval, domain.FormatDate(today))
	if err != nil {
		return 0, fmt.Errorf("failed to reset cards: %w", err)
	}
	return res.RowsAffected()
}

// Maturity counts cards by how established their schedule is.
type Maturity struct {
	New      int `db:"new_cards" json:"new"`
	Learning int `db:"learning" json:"learning"`
	Young    int `db:"young" json:"young"`
	Mature   int `db:"mature" json:"mature"`
}

// MaturityCounts buckets cards: never reviewed, interval under 7 days,
// 7 to 21 days, over 21 days.
func (q *Queries) MaturityCounts(ctx context.Context) (Maturity, error) {
	var m Maturity
	err := q.get(ctx, &m, `
		SELECT
			COALESCE(SUM(CASE WHEN times_reviewed = 0 THEN 1 ELSE 0 END), 0) AS new_cards,
			COALESCE(SUM(CASE WHEN times_reviewed > 0 AND interval < 7 THEN 1 ELSE 0 END), 0) AS learning,
			COALESCE(SUM(CASE WHEN times_reviewed > 0 AND interval BETWEEN 7 AND 21 THEN 1 ELSE 0 END), 0) AS young,
			COALESCE(SUM(CASE WHEN times_reviewed > 0 AND interval > 21 THEN 1 ELSE 0 END), 0) AS mature
		FROM cards
	`)
	if err != nil {
		return Maturity{}, fmt.Errorf("failed to compute card maturity: %w", err)
	}
	return m, nil
}

// CountCards counts the cards of a subject, or of all subjects for zero.
func (q *Queries) CountCards(ctx context.Context, subjectID int64) (int, error) {
	query, args := subjectClause(`SELECT COUNT(*) FROM cards WHERE 1 = 1`, nil, subjectID)
	var n int
	if err := q.get(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}
