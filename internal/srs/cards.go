package srs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/knol"
	"github.com/conorfennell/revise/internal/storage"
)

const defaultColour = "#3498db"

// CardInput carries the editable text of a card.
type CardInput struct {
	SubjectID int64
	Question  string
	Answer    string
	Topic     string
}

func (in CardInput) normalize() (CardInput, error) {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	in.Topic = strings.TrimSpace(in.Topic)
	if in.Question == "" || in.Answer == "" {
		return in, invalid("question and answer must not be empty")
	}
	return in, nil
}

// CreateCard adds a card in its initial state, due today.
func (s *Service) CreateCard(ctx context.Context, in CardInput) (domain.Card, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Card{}, err
	}
	if _, err := s.db.FindSubject(ctx, in.SubjectID); err != nil {
		return domain.Card{}, classify(err)
	}

	card := domain.NewCard(in.SubjectID, in.Question, in.Answer, in.Topic, s.Today())
	card.Hash = knol.Hash(card)
	card.CreatedAt = s.now().UTC()
	id, err := s.db.InsertCard(ctx, card)
	if err != nil {
		return domain.Card{}, classify(err)
	}
	card.ID = id
	return card, nil
}

// GetCard loads a single card.
func (s *Service) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	card, err := s.db.FindCard(ctx, id)
	if err != nil {
		return domain.Card{}, classify(err)
	}
	return card, nil
}

// ListCards returns the cards of a subject, or every card for zero.
func (s *Service) ListCards(ctx context.Context, subjectID int64) ([]domain.Card, error) {
	cards, err := s.db.ListCards(ctx, subjectID)
	if err != nil {
		return nil, classify(err)
	}
	return cards, nil
}

// UpdateCard replaces the text of a card. Its schedule is left alone.
func (s *Service) UpdateCard(ctx context.Context, id int64, in CardInput) (domain.Card, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Card{}, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated domain.Card
	err = s.db.InTx(ctx, func(tx *storage.Queries) error {
		card, err := tx.FindCard(ctx, id)
		if err != nil {
			return err
		}
		card.Question, card.Answer, card.Topic = in.Question, in.Answer, in.Topic
		card.Hash = knol.Hash(card)
		if err := tx.UpdateCardContent(ctx, card); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return domain.Card{}, classify(err)
	}
	return updated, nil
}

// DeleteCard removes a card and its review events, then rebuilds the daily
// totals so they stay consistent with the ledger.
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		if err := tx.DeleteCard(ctx, id); err != nil {
			return err
		}
		_, err := tx.RebuildDailyActivity(ctx)
		return err
	})
	if err != nil {
		return classify(err)
	}
	s.log.Info("Card deleted", "card_id", id)
	return nil
}

// ResetCard returns one card to its initial schedule, due today. Its history
// and lifetime counters are kept.
func (s *Service) ResetCard(ctx context.Context, id int64) (domain.Card, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.db.ResetCard(ctx, id, s.Today()); err != nil {
		return domain.Card{}, classify(err)
	}
	return s.GetCard(ctx, id)
}

// ResetAll returns every card to its initial schedule. With clearHistory the
// review ledger, the daily totals and the lifetime counters are wiped too.
func (s *Service) ResetAll(ctx context.Context, clearHistory bool) (int64, error) {
	var n int64
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		var err error
		if n, err = tx.ResetAllCards(ctx, s.Today(), clearHistory); err != nil {
			return err
		}
		if !clearHistory {
			return nil
		}
		if _, err := tx.DeleteAllReviewEvents(ctx); err != nil {
			return err
		}
		return tx.DeleteAllDailyActivity(ctx)
	})
	if err != nil {
		return 0, classify(err)
	}
	s.log.Info("All cards reset", "cards", n, "history_cleared", clearHistory)
	return n, nil
}

// CreateSubject adds a subject with a unique name.
func (s *Service) CreateSubject(ctx context.Context, name, colour string) (domain.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Subject{}, invalid("subject name must not be empty")
	}
	if colour == "" {
		colour = defaultColour
	}
	subject := domain.Subject{Name: name, Colour: colour, CreatedAt: s.now().UTC()}
	id, err := s.db.InsertSubject(ctx, subject)
	if err != nil {
		return domain.Subject{}, classify(err)
	}
	subject.ID = id
	return subject, nil
}

// EnsureSubject returns the subject with the given name, creating it first
// when missing.
func (s *Service) EnsureSubject(ctx context.Context, name string) (domain.Subject, error) {
	subject, err := s.db.FindSubjectByName(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		return subject, nil
	case errors.Is(err, storage.ErrNotFound):
		return s.CreateSubject(ctx, name, "")
	default:
		return domain.Subject{}, classify(err)
	}
}

// ListSubjects returns every subject ordered by name.
func (s *Service) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	subjects, err := s.db.ListSubjects(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return subjects, nil
}

// AddExam schedules an exam covering the given topics of a subject.
func (s *Service) AddExam(ctx context.Context, subjectID int64, name string, date time.Time, topics []string) (domain.Exam, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Exam{}, invalid("exam name must not be empty")
	}
	if _, err := s.db.FindSubject(ctx, subjectID); err != nil {
		return domain.Exam{}, classify(err)
	}
	exam := domain.Exam{SubjectID: subjectID, Name: name, Date: domain.DateOf(date, time.UTC)}
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			exam.Topics = append(exam.Topics, t)
		}
	}
	id, err := s.db.InsertExam(ctx, exam)
	if err != nil {
		return domain.Exam{}, classify(err)
	}
	exam.ID = id
	return exam, nil
}
