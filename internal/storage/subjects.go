package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

type subjectRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Colour    string    `db:"colour"`
	CreatedAt time.Time `db:"created_at"`
}

func (r subjectRow) toDomain() domain.Subject {
	return domain.Subject{ID: r.ID, Name: r.Name, Colour: r.Colour, CreatedAt: r.CreatedAt}
}

// InsertSubject creates a subject and returns its ID.
func (q *Queries) InsertSubject(ctx context.Context, s domain.Subject) (int64, error) {
	colour := s.Colour
	if colour == "" {
		colour = "#3498db"
	}
	res, err := q.q.ExecContext(ctx, `INSERT INTO subjects (name, colour, created_at) VALUES (?, ?, ?)`,
		s.Name, colour, s.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert subject %q: %w", s.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for subject: %w", err)
	}
	return id, nil
}

// FindSubject retrieves a subject by ID.
func (q *Queries) FindSubject(ctx context.Context, id int64) (domain.Subject, error) {
	var r subjectRow
	if err := q.get(ctx, &r, `SELECT id, name, colour, created_at FROM subjects WHERE id = ?`, id); err != nil {
		if notFound(err) {
			return domain.Subject{}, fmt.Errorf("subject %d: %w", id, ErrNotFound)
		}
		return domain.Subject{}, fmt.Errorf("failed to find subject %d: %w", id, err)
	}
	return r.toDomain(), nil
}

// FindSubjectByName retrieves a subject by its unique name.
func (q *Queries) FindSubjectByName(ctx context.Context, name string) (domain.Subject, error) {
	var r subjectRow
	if err := q.get(ctx, &r, `SELECT id, name, colour, created_at FROM subjects WHERE name = ?`, name); err != nil {
		if notFound(err) {
			return domain.Subject{}, fmt.Errorf("subject %q: %w", name, ErrNotFound)
		}
		return domain.Subject{}, fmt.Errorf("failed to find subject %q: %w", name, err)
	}
	return r.toDomain(), nil
}

// ListSubjects returns every subject ordered by name.
func (q *Queries) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var rows []subjectRow
	if err := q.sel(ctx, &rows, `SELECT id, name, colour, created_at FROM subjects ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	out := make([]domain.Subject, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type examRow struct {
	ID        int64  `db:"id"`
	SubjectID int64  `db:"subject_id"`
	Name      string `db:"name"`
	Date      string `db:"exam_date"`
}

// InsertExam stores an exam together with the topics it covers.
func (q *Queries) InsertExam(ctx context.Context, e domain.Exam) (int64, error) {
	res, err := q.q.ExecContext(ctx, `INSERT INTO exams (subject_id, name, exam_date) VALUES (?, ?, ?)`,
		e.SubjectID, e.Name, domain.FormatDate(e.Date))
	if err != nil {
		return 0, fmt.Errorf("failed to insert exam %q: %w", e.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for exam: %w", err)
	}
	for _, topic := range e.Topics {
		if _, err := q.q.ExecContext(ctx, `INSERT OR IGNORE INTO exam_topics (exam_id, topic) VALUES (?, ?)`,
			id, topic); err != nil {
			return 0, fmt.Errorf("failed to link topic %q to exam %d: %w", topic, id, err)
		}
	}
	return id, nil
}

// UpcomingExams returns exams dated today or later, soonest first, with
// their topics filled in.
func (q *Queries) UpcomingExams(ctx context.Context, today time.Time) ([]domain.Exam, error) {
	var rows []examRow
	err := q.sel(ctx, &rows, `
		SELECT id, subject_id, name, exam_date FROM exams
		WHERE exam_date >= ?
		ORDER BY exam_date, id
	`, domain.FormatDate(today))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming exams: %w", err)
	}

	exams := make([]domain.Exam, 0, len(rows))
	for _, r := range rows {
		d, err := domain.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("exam %d: %w", r.ID, err)
		}
		var topics []string
		if err := q.sel(ctx, &topics, `SELECT topic FROM exam_topics WHERE exam_id = ? ORDER BY topic`, r.ID); err != nil {
			return nil, fmt.Errorf("failed to list topics of exam %d: %w", r.ID, err)
		}
		exams = append(exams, domain.Exam{ID: r.ID, SubjectID: r.SubjectID, Name: r.Name, Date: d, Topics: topics})
	}
	return exams, nil
}
