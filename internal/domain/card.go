package domain

import "time"

// Default SM-2 state for a card or topic that has never been graded.
const (
	DefaultEase     = 2.5
	MinEase         = 1.3
	DefaultInterval = 0
)

// Card is a question/answer pair under spaced repetition.
type Card struct {
	ID             int64
	SubjectID      int64
	Question       string
	Answer         string
	Topic          string
	Hash           string
	EaseFactor     float64
	Interval       int
	Repetitions    int
	NextReview     time.Time // calendar date, see DateOf
	TimesReviewed  int
	TimesCorrect   int
	CreatedAt      time.Time
	LastReviewedAt *time.Time
}

// NewCard returns a card in its initial scheduling state, due today.
func NewCard(subjectID int64, question, answer, topic string, today time.Time) Card {
	return Card{
		SubjectID:   subjectID,
		Question:    question,
		Answer:      answer,
		Topic:       topic,
		EaseFactor:  DefaultEase,
		Interval:    DefaultInterval,
		Repetitions: 0,
		NextReview:  today,
	}
}

// Accuracy returns the lifetime share of correct reviews in [0, 1].
func (c Card) Accuracy() float64 {
	if c.TimesReviewed == 0 {
		return 0
	}
	return float64(c.TimesCorrect) / float64(c.TimesReviewed)
}

// DaysOverdue is negative when the card is not yet due.
func (c Card) DaysOverdue(today time.Time) int {
	return DaysBetween(c.NextReview, today)
}

// ReviewEvent records a single graded recall attempt. It is never mutated.
// Quality uses the 1-5 scale:
// 1-2: lapse
// 3: correct with effort
// 4: correct after hesitation
// 5: perfect recall
type ReviewEvent struct {
	ID             int64
	CardID         int64
	Quality        int
	ReviewedAt     time.Time
	ReviewDate     time.Time
	ElapsedSeconds *int
	EaseBefore     float64
	EaseAfter      float64
	IntervalBefore int
	IntervalAfter  int
}

// Correct reports whether the review counted as a successful recall.
func (e ReviewEvent) Correct() bool {
	return e.Quality >= 3
}

// DailyActivity is the per-day cache of review volume derived from the ledger.
type DailyActivity struct {
	Date          time.Time
	CardsReviewed int
	CardsCorrect  int
	SecondsSpent  int
}
