package srs

import (
	"context"
	"sort"
	"time"

	"github.com/conorfennell/revise/internal/domain"
)

// Priority weights. A due topic earns dueBase plus overdueWeight per day
// overdue, capped at maxOverdueDays. Importance adds importanceWeight per
// level. An upcoming exam listing the topic adds one point per day it is
// closer than examWindow days. An assessed topic adds a point per ten points
// its average score falls short of 100.
const (
	dueBase          = 10.0
	overdueWeight    = 2.0
	maxOverdueDays   = 30
	importanceWeight = 5.0
	examWindow       = 30
)

// Recommendation is a topic ranked for study.
type Recommendation struct {
	Topic         domain.TopicState
	Score         float64
	DaysOverdue   int  // negative when not yet due
	DaysUntilExam *int // nil without an upcoming exam
	ExamName      string
}

// PriorityScore ranks a topic against the upcoming exams of all subjects.
func PriorityScore(ts domain.TopicState, today time.Time, exams []domain.Exam) Recommendation {
	r := Recommendation{Topic: ts, DaysOverdue: domain.DaysBetween(ts.NextReview, today)}

	if r.DaysOverdue >= 0 {
		r.Score += dueBase + overdueWeight*float64(min(r.DaysOverdue, maxOverdueDays))
	}
	r.Score += importanceWeight * float64(ts.Importance)

	for _, e := range exams {
		if e.SubjectID != ts.SubjectID || !e.Covers(ts.Topic) {
			continue
		}
		days := domain.DaysBetween(today, e.Date)
		if days < 0 {
			continue
		}
		if r.DaysUntilExam == nil || days < *r.DaysUntilExam {
			d := days
			r.DaysUntilExam = &d
			r.ExamName = e.Name
		}
	}
	if r.DaysUntilExam != nil {
		r.Score += float64(max(0, examWindow-*r.DaysUntilExam))
	}

	if ts.AssessmentCount > 0 {
		r.Score += (100 - ts.AverageScore) / 10
	}
	return r
}

// Recommend ranks every topic state by priority, highest first, ties broken
// by topic name. A zero limit returns every topic.
func (s *Service) Recommend(ctx context.Context, limit int) ([]Recommendation, error) {
	if limit < 0 {
		return nil, invalid("limit must not be negative, got %d", limit)
	}
	today := s.Today()
	topics, err := s.db.ListTopicStates(ctx, 0)
	if err != nil {
		return nil, classify(err)
	}
	exams, err := s.db.UpcomingExams(ctx, today)
	if err != nil {
		return nil, classify(err)
	}

	recs := make([]Recommendation, 0, len(topics))
	for _, ts := range topics {
		recs = append(recs, PriorityScore(ts, today, exams))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Topic.Topic < recs[j].Topic.Topic
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
