package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

const topicColumns = `id, subject_id, topic, ease_factor, interval, repetitions, next_review,
	average_score, assessment_count, importance, source, last_assessed_at, created_at`

type topicRow struct {
	ID              int64        `db:"id"`
	SubjectID       int64        `db:"subject_id"`
	Topic           string       `db:"topic"`
	EaseFactor      float64      `db:"ease_factor"`
	Interval        int          `db:"interval"`
	Repetitions     int          `db:"repetitions"`
	NextReview      string       `db:"next_review"`
	AverageScore    float64      `db:"average_score"`
	AssessmentCount int          `db:"assessment_count"`
	Importance      int          `db:"importance"`
	Source          string       `db:"source"`
	LastAssessedAt  sql.NullTime `db:"last_assessed_at"`
	CreatedAt       time.Time    `db:"created_at"`
}

func (r topicRow) toDomain() (domain.TopicState, error) {
	next, err := domain.ParseDate(r.NextReview)
	if err != nil {
		return domain.TopicState{}, fmt.Errorf("topic %d: %w", r.ID, err)
	}
	ts := domain.TopicState{
		ID:              r.ID,
		SubjectID:       r.SubjectID,
		Topic:           r.Topic,
		EaseFactor:      r.EaseFactor,
		Interval:        r.Interval,
		Repetitions:     r.Repetitions,
		NextReview:      next,
		AverageScore:    r.AverageScore,
		AssessmentCount: r.AssessmentCount,
		Importance:      r.Importance,
		Source:          domain.TopicSource(r.Source),
		CreatedAt:       r.CreatedAt,
	}
	if r.LastAssessedAt.Valid {
		t := r.LastAssessedAt.Time
		ts.LastAssessedAt = &t
	}
	return ts, nil
}

func topicsFromRows(rows []topicRow) ([]domain.TopicState, error) {
	out := make([]domain.TopicState, 0, len(rows))
	for _, r := range rows {
		ts, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

// InsertTopicState creates a topic state and returns its ID.
// A duplicate (subject, topic) pair fails on the unique constraint.
func (q *Queries) InsertTopicState(ctx context.Context, ts domain.TopicState) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO topic_states (subject_id, topic, ease_factor, interval, repetitions, next_review,
			average_score, assessment_count, importance, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.SubjectID,
		ts.Topic,
		ts.EaseFactor,
		ts.Interval,
		ts.Repetitions,
		domain.FormatDate(ts.NextReview),
		ts.AverageScore,
		ts.AssessmentCount,
		ts.Importance,
		string(ts.Source),
		ts.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert topic %q: %w", ts.Topic, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for topic: %w", err)
	}
	return id, nil
}

// FindTopicState retrieves the state of a subject's topic.
func (q *Queries) FindTopicState(ctx context.Context, subjectID int64, topic string) (domain.TopicState, error) {
	var r topicRow
	err := q.get(ctx, &r, `SELECT `+topicColumns+` FROM topic_states WHERE subject_id = ? AND topic = ?`,
		subjectID, topic)
	if err != nil {
		if notFound(err) {
			return domain.TopicState{}, fmt.Errorf("topic %q: %w", topic, ErrNotFound)
		}
		return domain.TopicState{}, fmt.Errorf("failed to find topic %q: %w", topic, err)
	}
	return r.toDomain()
}

// UpdateTopicState writes a topic's scheduling state and assessment summary.
func (q *Queries) UpdateTopicState(ctx context.Context, ts domain.TopicState) error {
	var last sql.NullTime
	if ts.LastAssessedAt != nil {
		last = sql.NullTime{Time: *ts.LastAssessedAt, Valid: true}
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE topic_states
		SET ease_factor = ?, interval = ?, repetitions = ?, next_review = ?,
			average_score = ?, assessment_count = ?, importance = ?, last_assessed_at = ?
		WHERE id = ?
	`,
		ts.EaseFactor,
		ts.Interval,
		ts.Repetitions,
		domain.FormatDate(ts.NextReview),
		ts.AverageScore,
		ts.AssessmentCount,
		ts.Importance,
		last,
		ts.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic %q: %w", ts.Topic, err)
	}
	return expectOne(res, "topic", ts.ID)
}

// ListTopicStates returns the topic states of a subject, or of all subjects
// for zero, ordered by subject then topic.
func (q *Queries) ListTopicStates(ctx context.Context, subjectID int64) ([]domain.TopicState, error) {
	query, args := subjectClause(`SELECT `+topicColumns+` FROM topic_states WHERE 1 = 1`, nil, subjectID)
	var rows []topicRow
	if err := q.sel(ctx, &rows, query+` ORDER BY subject_id, topic`, args...); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topicsFromRows(rows)
}

// DueTopicStates returns topic states due on or before today, most overdue first.
func (q *Queries) DueTopicStates(ctx context.Context, today time.Time, subjectID int64) ([]domain.TopicState, error) {
	query, args := subjectClause(`SELECT `+topicColumns+` FROM topic_states WHERE next_review <= ?`,
		[]any{domain.FormatDate(today)}, subjectID)
	var rows []topicRow
	if err := q.sel(ctx, &rows, query+` ORDER BY next_review ASC, ease_factor ASC, topic ASC`, args...); err != nil {
		return nil, fmt.Errorf("failed to list due topics: %w", err)
	}
	return topicsFromRows(rows)
}
