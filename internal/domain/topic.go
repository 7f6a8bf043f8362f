package domain

import "time"

// TopicSource records how a topic state came into existence.
type TopicSource string

const (
	SourceFlashcards TopicSource = "flashcards"
	SourceManual     TopicSource = "manual"
	SourceAssessment TopicSource = "assessment"
)

const (
	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3
)

// TopicState is the coarse-grained SM-2 state of a whole topic within a
// subject. It is driven by assessment scores rather than per-card grades.
type TopicState struct {
	ID              int64
	SubjectID       int64
	Topic           string
	EaseFactor      float64
	Interval        int
	Repetitions     int
	NextReview      time.Time
	AverageScore    float64
	AssessmentCount int
	Importance      int
	Source          TopicSource
	LastAssessedAt  *time.Time
	CreatedAt       time.Time
}

// NewTopicState returns a topic state in its initial scheduling state.
func NewTopicState(subjectID int64, topic string, source TopicSource, today time.Time) TopicState {
	return TopicState{
		SubjectID:   subjectID,
		Topic:       topic,
		EaseFactor:  DefaultEase,
		Interval:    DefaultInterval,
		Repetitions: 0,
		NextReview:  today,
		Importance:  DefaultImportance,
		Source:      source,
	}
}

// Subject groups cards, topics and exams.
type Subject struct {
	ID        int64
	Name      string
	Colour    string
	CreatedAt time.Time
}

// Exam is a dated assessment covering a set of topics of one subject.
type Exam struct {
	ID        int64
	SubjectID int64
	Name      string
	Date      time.Time
	Topics    []string
}

// Covers reports whether the exam lists the topic.
func (e Exam) Covers(topic string) bool {
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
