package srs

import (
	"context"
	"fmt"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/sm2"
	"github.com/conorfennell/revise/internal/storage"
)

// GradeReview applies a recall grade to a card. The card's new state, the
// ledger event and the day's activity totals are written in one transaction,
// so either all three change or none does. Grades of the same card are
// serialised.
//
// A failed call must not be retried blindly: the commit may have succeeded
// before the error reached the caller.
func (s *Service) GradeReview(ctx context.Context, cardID int64, quality int, elapsedSeconds *int) (domain.Card, error) {
	q := sm2.Quality(quality)
	if !q.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %w: %d", ErrInvalidInput, sm2.ErrInvalidQuality, quality)
	}
	if elapsedSeconds != nil && *elapsedSeconds < 0 {
		return domain.Card{}, invalid("elapsed seconds must not be negative, got %d", *elapsedSeconds)
	}

	unlock := s.locks.Lock(cardID)
	defer unlock()

	now := s.now().UTC()
	today := domain.DateOf(now, s.loc)

	var updated domain.Card
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		card, err := tx.FindCard(ctx, cardID)
		if err != nil {
			return err
		}

		next, err := s.params.NextState(sm2.State{
			EaseFactor:  card.EaseFactor,
			Interval:    card.Interval,
			Repetitions: card.Repetitions,
			NextReview:  card.NextReview,
		}, q, today)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		event := domain.ReviewEvent{
			CardID:         card.ID,
			Quality:        quality,
			ReviewedAt:     now,
			ReviewDate:     today,
			ElapsedSeconds: elapsedSeconds,
			EaseBefore:     card.EaseFactor,
			EaseAfter:      next.EaseFactor,
			IntervalBefore: card.Interval,
			IntervalAfter:  next.Interval,
		}

		success := s.params.IsSuccess(q)
		card.EaseFactor = next.EaseFactor
		card.Interval = next.Interval
		card.Repetitions = next.Repetitions
		card.NextReview = next.NextReview
		card.TimesReviewed++
		if success {
			card.TimesCorrect++
		}
		card.LastReviewedAt = &now

		if err := tx.UpdateCardState(ctx, card); err != nil {
			return err
		}
		if _, err := tx.InsertReviewEvent(ctx, event); err != nil {
			return err
		}
		seconds := 0
		if elapsedSeconds != nil {
			seconds = *elapsedSeconds
		}
		if err := tx.AddDailyActivity(ctx, today, success, seconds); err != nil {
			return err
		}

		updated = card
		return nil
	})
	if err != nil {
		return domain.Card{}, classify(err)
	}

	s.log.Info("Review graded",
		"card_id", updated.ID,
		"quality", quality,
		"ease", updated.EaseFactor,
		"interval", updated.Interval,
		"next_review", domain.FormatDate(updated.NextReview),
	)
	return updated, nil
}

// ReviewHistory returns ledger events newest first. A zero cardID returns the
// events of every card and a zero limit returns all of them.
func (s *Service) ReviewHistory(ctx context.Context, cardID int64, limit int) ([]domain.ReviewEvent, error) {
	if limit < 0 {
		return nil, invalid("limit must not be negative, got %d", limit)
	}
	if cardID != 0 {
		if _, err := s.db.FindCard(ctx, cardID); err != nil {
			return nil, classify(err)
		}
	}
	events, err := s.db.ListReviewEvents(ctx, cardID, beginningOfTime, endOfTime, limit)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}
