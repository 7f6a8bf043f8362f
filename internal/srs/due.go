package srs

import (
	"context"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/storage"
)

// DueCards lists cards with next_review on or before today, most overdue
// first, then lowest ease. A zero subjectID covers every subject and a zero
// limit returns every due card.
func (s *Service) DueCards(ctx context.Context, subjectID int64, limit int) ([]domain.Card, error) {
	if limit < 0 {
		return nil, invalid("limit must not be negative, got %d", limit)
	}
	cards, err := s.db.DueCards(ctx, s.Today(), subjectID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return cards, nil
}

// DueCount counts what DueCards would return without a limit.
func (s *Service) DueCount(ctx context.Context, subjectID int64) (int, error) {
	n, err := s.db.CountDue(ctx, s.Today(), subjectID, false)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// OverdueCount counts cards that were due strictly before today.
func (s *Service) OverdueCount(ctx context.Context, subjectID int64) (int, error) {
	n, err := s.db.CountDue(ctx, s.Today(), subjectID, true)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// DueCountsBySubject groups the due cards by subject, largest group first.
func (s *Service) DueCountsBySubject(ctx context.Context) ([]storage.SubjectCount, error) {
	counts, err := s.db.DueCountsBySubject(ctx, s.Today())
	if err != nil {
		return nil, classify(err)
	}
	return counts, nil
}
