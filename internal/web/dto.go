package web

import (
	"time"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/importer"
	"github.com/conorfennell/revise/internal/retrieval"
	"github.com/conorfennell/revise/internal/srs"
)

type cardResponse struct {
	ID             int64      `json:"id"`
	SubjectID      int64      `json:"subject_id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Topic          string     `json:"topic,omitempty"`
	EaseFactor     float64    `json:"ease_factor"`
	Interval       int        `json:"interval"`
	Repetitions    int        `json:"repetitions"`
	NextReview     string     `json:"next_review"`
	TimesReviewed  int        `json:"times_reviewed"`
	TimesCorrect   int        `json:"times_correct"`
	CreatedAt      time.Time  `json:"created_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
}

func toCardResponse(c domain.Card) cardResponse {
	return cardResponse{
		ID:             c.ID,
		SubjectID:      c.SubjectID,
		Question:       c.Question,
		Answer:         c.Answer,
		Topic:          c.Topic,
		EaseFactor:     c.EaseFactor,
		Interval:       c.Interval,
		Repetitions:    c.Repetitions,
		NextReview:     domain.FormatDate(c.NextReview),
		TimesReviewed:  c.TimesReviewed,
		TimesCorrect:   c.TimesCorrect,
		CreatedAt:      c.CreatedAt,
		LastReviewedAt: c.LastReviewedAt,
	}
}

func toCardResponses(cards []domain.Card) []cardResponse {
	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	return out
}

type reviewEventResponse struct {
	ID             int64     `json:"id"`
	CardID         int64     `json:"card_id"`
	Quality        int       `json:"quality"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	ReviewDate     string    `json:"review_date"`
	ElapsedSeconds *int      `json:"elapsed_seconds,omitempty"`
	EaseBefore     float64   `json:"ease_before"`
	EaseAfter      float64   `json:"ease_after"`
	IntervalBefore int       `json:"interval_before"`
	IntervalAfter  int       `json:"interval_after"`
}

func toReviewEventResponses(events []domain.ReviewEvent) []reviewEventResponse {
	out := make([]reviewEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, reviewEventResponse{
			ID:             e.ID,
			CardID:         e.CardID,
			Quality:        e.Quality,
			ReviewedAt:     e.ReviewedAt,
			ReviewDate:     domain.FormatDate(e.ReviewDate),
			ElapsedSeconds: e.ElapsedSeconds,
			EaseBefore:     e.EaseBefore,
			EaseAfter:      e.EaseAfter,
			IntervalBefore: e.IntervalBefore,
			IntervalAfter:  e.IntervalAfter,
		})
	}
	return out
}

type topicResponse struct {
	ID              int64      `json:"id"`
	SubjectID       int64      `json:"subject_id"`
	Topic           string     `json:"topic"`
	EaseFactor      float64    `json:"ease_factor"`
	Interval        int        `json:"interval"`
	Repetitions     int        `json:"repetitions"`
	NextReview      string     `json:"next_review"`
	AverageScore    float64    `json:"average_score"`
	AssessmentCount int        `json:"assessment_count"`
	Importance      int        `json:"importance"`
	Source          string     `json:"source"`
	LastAssessedAt  *time.Time `json:"last_assessed_at,omitempty"`
}

func toTopicResponse(ts domain.TopicState) topicResponse {
	return topicResponse{
		ID:              ts.ID,
		SubjectID:       ts.SubjectID,
		Topic:           ts.Topic,
		EaseFactor:      ts.EaseFactor,
		Interval:        ts.Interval,
		Repetitions:     ts.Repetitions,
		NextReview:      domain.FormatDate(ts.NextReview),
		AverageScore:    ts.AverageScore,
		AssessmentCount: ts.AssessmentCount,
		Importance:      ts.Importance,
		Source:          string(ts.Source),
		LastAssessedAt:  ts.LastAssessedAt,
	}
}

func toTopicResponses(topics []domain.TopicState) []topicResponse {
	out := make([]topicResponse, 0, len(topics))
	for _, ts := range topics {
		out = append(out, toTopicResponse(ts))
	}
	return out
}

type recommendationResponse struct {
	Topic         topicResponse `json:"topic"`
	Score         float64       `json:"score"`
	DaysOverdue   int           `json:"days_overdue"`
	DaysUntilExam *int          `json:"days_until_exam,omitempty"`
	ExamName      string        `json:"exam_name,omitempty"`
}

func toRecommendationResponses(recs []srs.Recommendation) []recommendationResponse {
	out := make([]recommendationResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, recommendationResponse{
			Topic:         toTopicResponse(r.Topic),
			Score:         r.Score,
			DaysOverdue:   r.DaysOverdue,
			DaysUntilExam: r.DaysUntilExam,
			ExamName:      r.ExamName,
		})
	}
	return out
}

type subjectResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Colour string `json:"colour"`
}

type examResponse struct {
	ID        int64    `json:"id"`
	SubjectID int64    `json:"subject_id"`
	Name      string   `json:"name"`
	Date      string   `json:"date"`
	Topics    []string `json:"topics"`
}

type searchResultResponse struct {
	CardID        int64   `json:"card_id"`
	SubjectID     int64   `json:"subject_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
}

type searchResponse struct {
	Capability string                 `json:"capability"`
	Results    []searchResultResponse `json:"results"`
	Context    string                 `json:"context,omitempty"`
}

func toSearchResponse(capability retrieval.Capability, results []retrieval.Result, context string) searchResponse {
	resp := searchResponse{
		Capability: capability.String(),
		Results:    make([]searchResultResponse, 0, len(results)),
		Context:    context,
	}
	for _, r := range results {
		resp.Results = append(resp.Results, searchResultResponse{
			CardID:        r.ID,
			SubjectID:     r.SubjectID,
			Title:         r.Title,
			Content:       r.Content,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
		})
	}
	return resp
}

type importResponse struct {
	Source     string   `json:"source"`
	SubjectID  int64    `json:"subject_id"`
	Subject    string   `json:"subject"`
	Files      int      `json:"files"`
	Parsed     int      `json:"parsed"`
	Inserted   int      `json:"inserted"`
	Existing   int      `json:"existing"`
	Duplicates int      `json:"duplicates"`
	Stale      int      `json:"stale"`
	Errors     []string `json:"errors"`
}

func toImportResponse(rep importer.Report) importResponse {
	resp := importResponse{
		Source:     rep.Source,
		SubjectID:  rep.Subject.ID,
		Subject:    rep.Subject.Name,
		Files:      rep.Files,
		Parsed:     rep.Parsed,
		Inserted:   rep.Inserted,
		Existing:   rep.Existing,
		Duplicates: rep.Duplicates,
		Stale:      rep.Stale,
		Errors:     make([]string, 0, len(rep.Errors)),
	}
	for _, err := range rep.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

// Requests.

type reviewRequest struct {
	Quality        int  `json:"quality" validate:"required,min=1,max=5"`
	ElapsedSeconds *int `json:"elapsed_seconds" validate:"omitempty,min=0"`
}

type cardRequest struct {
	SubjectID int64  `json:"subject_id" validate:"required,gt=0"`
	Question  string `json:"question" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
	Topic     string `json:"topic"`
}

type subjectRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Colour string `json:"colour" validate:"omitempty,hexcolor"`
}

type examRequest struct {
	Name   string   `json:"name" validate:"required"`
	Date   string   `json:"date" validate:"required,datetime=2006-01-02"`
	Topics []string `json:"topics" validate:"dive,required"`
}

type gradeTopicRequest struct {
	SubjectID    int64    `json:"subject_id" validate:"required,gt=0"`
	Topic        string   `json:"topic" validate:"required"`
	ScorePercent *float64 `json:"score_percent" validate:"required,min=0,max=100"`
}

type topicRequest struct {
	SubjectID  int64  `json:"subject_id" validate:"required,gt=0"`
	Topic      string `json:"topic" validate:"required"`
	Importance int    `json:"importance" validate:"omitempty,min=1,max=5"`
}

type resetRequest struct {
	ClearHistory bool `json:"clear_history"`
}

type importRequest struct {
	Source  string `json:"source" validate:"required"`
	Subject string `json:"subject"`
}
