package srs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/sm2"
	"github.com/conorfennell/revise/internal/storage"
)

// SyncTopicsFromCards creates a default topic state for every topic label on
// the subject's cards that has none yet, and returns how many were created.
// Existing topic states are left untouched, so repeated calls return 0. A
// zero subjectID syncs every subject.
func (s *Service) SyncTopicsFromCards(ctx context.Context, subjectID int64) (int, error) {
	today := s.Today()
	created := 0
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		topics, err := tx.DistinctTopics(ctx, subjectID)
		if err != nil {
			return err
		}
		for _, st := range topics {
			_, err := tx.FindTopicState(ctx, st.SubjectID, st.Topic)
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			ts := domain.NewTopicState(st.SubjectID, st.Topic, domain.SourceFlashcards, today)
			ts.CreatedAt = s.now().UTC()
			if _, err := tx.InsertTopicState(ctx, ts); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	s.log.Info("Topics synced from cards", "subject_id", subjectID, "created", created)
	return created, nil
}

// GradeTopic schedules a topic from an assessment score in percent. The score
// is mapped onto the 1-5 quality scale and fed through the same SM-2 update as
// a card; the topic's rolling average score is updated alongside. A topic
// without state gets one, with assessment provenance.
func (s *Service) GradeTopic(ctx context.Context, subjectID int64, topic string, scorePercent float64) (domain.TopicState, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.TopicState{}, invalid("topic must not be empty")
	}
	q, err := sm2.QualityFromScore(scorePercent)
	if err != nil {
		return domain.TopicState{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now().UTC()
	today := domain.DateOf(now, s.loc)

	var graded domain.TopicState
	err = s.db.InTx(ctx, func(tx *storage.Queries) error {
		if _, err := tx.FindSubject(ctx, subjectID); err != nil {
			return err
		}
		ts, err := tx.FindTopicState(ctx, subjectID, topic)
		if errors.Is(err, storage.ErrNotFound) {
			ts = domain.NewTopicState(subjectID, topic, domain.SourceAssessment, today)
			ts.CreatedAt = now
			if ts.ID, err = tx.InsertTopicState(ctx, ts); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		next, err := s.params.NextState(sm2.State{
			EaseFactor:  ts.EaseFactor,
			Interval:    ts.Interval,
			Repetitions: ts.Repetitions,
			NextReview:  ts.NextReview,
		}, q, today)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		ts.EaseFactor = next.EaseFactor
		ts.Interval = next.Interval
		ts.Repetitions = next.Repetitions
		ts.NextReview = next.NextReview
		ts.AverageScore = (ts.AverageScore*float64(ts.AssessmentCount) + scorePercent) / float64(ts.AssessmentCount+1)
		ts.AssessmentCount++
		ts.LastAssessedAt = &now

		if err := tx.UpdateTopicState(ctx, ts); err != nil {
			return err
		}
		graded = ts
		return nil
	})
	if err != nil {
		return domain.TopicState{}, classify(err)
	}

	s.log.Info("Topic graded",
		"subject_id", subjectID,
		"topic", topic,
		"score", scorePercent,
		"quality", int(q),
		"next_review", domain.FormatDate(graded.NextReview),
	)
	return graded, nil
}

func checkImportance(importance int) error {
	if importance < domain.MinImportance || importance > domain.MaxImportance {
		return invalid("importance must be between %d and %d, got %d",
			domain.MinImportance, domain.MaxImportance, importance)
	}
	return nil
}

// AddTopic creates a manually tracked topic. Adding a topic that already has
// state is an input error.
func (s *Service) AddTopic(ctx context.Context, subjectID int64, topic string, importance int) (domain.TopicState, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.TopicState{}, invalid("topic must not be empty")
	}
	if err := checkImportance(importance); err != nil {
		return domain.TopicState{}, err
	}

	var ts domain.TopicState
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		if _, err := tx.FindSubject(ctx, subjectID); err != nil {
			return err
		}
		_, err := tx.FindTopicState(ctx, subjectID, topic)
		if err == nil {
			return invalid("topic %q already exists", topic)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ts = domain.NewTopicState(subjectID, topic, domain.SourceManual, s.Today())
		ts.Importance = importance
		ts.CreatedAt = s.now().UTC()
		ts.ID, err = tx.InsertTopicState(ctx, ts)
		return err
	})
	if err != nil {
		return domain.TopicState{}, classify(err)
	}
	return ts, nil
}

// SetTopicImportance changes the weight a topic carries in recommendations.
func (s *Service) SetTopicImportance(ctx context.Context, subjectID int64, topic string, importance int) (domain.TopicState, error) {
	if err := checkImportance(importance); err != nil {
		return domain.TopicState{}, err
	}

	var ts domain.TopicState
	err := s.db.InTx(ctx, func(tx *storage.Queries) error {
		var err error
		if ts, err = tx.FindTopicState(ctx, subjectID, strings.TrimSpace(topic)); err != nil {
			return err
		}
		ts.Importance = importance
		return tx.UpdateTopicState(ctx, ts)
	})
	if err != nil {
		return domain.TopicState{}, classify(err)
	}
	return ts, nil
}

// DueTopics lists topic states due on or before today.
func (s *Service) DueTopics(ctx context.Context, subjectID int64) ([]domain.TopicState, error) {
	topics, err := s.db.DueTopicStates(ctx, s.Today(), subjectID)
	if err != nil {
		return nil, classify(err)
	}
	return topics, nil
}

// ListTopics returns every topic state of a subject, or of all subjects for zero.
func (s *Service) ListTopics(ctx context.Context, subjectID int64) ([]domain.TopicState, error) {
	topics, err := s.db.ListTopicStates(ctx, subjectID)
	if err != nil {
		return nil, classify(err)
	}
	return topics, nil
}
