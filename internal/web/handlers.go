package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/conorfennell/revise/internal/analytics"
	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/retrieval"
	"github.com/conorfennell/revise/internal/srs"
)

// maxContextChars bounds the prompt context returned with search results.
const maxContextChars = 2000

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Cards

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		cards, err := s.svc.ListCards(r.Context(), subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponses(cards))
	}
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cardRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.svc.CreateCard(r.Context(), srs.CardInput(req))
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, toCardResponse(card))
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.svc.GetCard(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponse(card))
	}
}

func (s *Server) handleUpdateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		var req cardRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.svc.UpdateCard(r.Context(), id, srs.CardInput(req))
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponse(card))
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if err := s.svc.DeleteCard(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		var req reviewRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.svc.GradeReview(r.Context(), id, req.Quality, req.ElapsedSeconds)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponse(card))
	}
}

func (s *Server) handleResetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.svc.ResetCard(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponse(card))
	}
}

func (s *Server) handleCardHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			handleError(w, r, err)
			return
		}
		events, err := s.svc.ReviewHistory(r.Context(), id, limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toReviewEventResponses(events))
	}
}

func (s *Server) handleDueCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", s.limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
		cards, err := s.svc.DueCards(r.Context(), subjectID, limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toCardResponses(cards))
	}
}

func (s *Server) countHandler(count func(*http.Request, int64) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		n, err := count(r, subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]int{"count": n})
	}
}

func (s *Server) handleDueCount() http.HandlerFunc {
	return s.countHandler(func(r *http.Request, subjectID int64) (int, error) {
		return s.svc.DueCount(r.Context(), subjectID)
	})
}

func (s *Server) handleOverdueCount() http.HandlerFunc {
	return s.countHandler(func(r *http.Request, subjectID int64) (int, error) {
		return s.svc.OverdueCount(r.Context(), subjectID)
	})
}

// Subjects

func (s *Server) handleListSubjects() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjects, err := s.svc.ListSubjects(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		out := make([]subjectResponse, 0, len(subjects))
		for _, sub := range subjects {
			out = append(out, subjectResponse{ID: sub.ID, Name: sub.Name, Colour: sub.Colour})
		}
		respondJSON(w, r, http.StatusOK, out)
	}
}

func (s *Server) handleCreateSubject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subjectRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		sub, err := s.svc.CreateSubject(r.Context(), req.Name, req.Colour)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, subjectResponse{ID: sub.ID, Name: sub.Name, Colour: sub.Colour})
	}
}

func (s *Server) handleAddExam() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := pathID(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		var req examRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			handleError(w, r, fmt.Errorf("%w: %v", srs.ErrInvalidInput, err))
			return
		}
		exam, err := s.svc.AddExam(r.Context(), subjectID, req.Name, date, req.Topics)
		if err != nil {
			handleError(w, r, err)
			return
		}
		topics := exam.Topics
		if topics == nil {
			topics = []string{}
		}
		respondJSON(w, r, http.StatusCreated, examResponse{
			ID:        exam.ID,
			SubjectID: exam.SubjectID,
			Name:      exam.Name,
			Date:      domain.FormatDate(exam.Date),
			Topics:    topics,
		})
	}
}

// Statistics

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.svc.Stats(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, st)
	}
}

func (s *Server) handleStreak() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streak, err := s.svc.Streak(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, streak)
	}
}

// horizonHandler serves reports over a number of days taken from ?days=.
func horizonHandler(def int, report func(*http.Request, int) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", def)
		if err != nil {
			handleError(w, r, err)
			return
		}
		out, err := report(r, days)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, out)
	}
}

func (s *Server) handleForecast() http.HandlerFunc {
	return horizonHandler(7, func(r *http.Request, days int) (any, error) {
		return s.svc.Forecast(r.Context(), days)
	})
}

func (s *Server) handleHeatmap() http.HandlerFunc {
	return horizonHandler(90, func(r *http.Request, days int) (any, error) {
		return s.svc.Heatmap(r.Context(), days)
	})
}

func (s *Server) handleHistory() http.HandlerFunc {
	return horizonHandler(30, func(r *http.Request, days int) (any, error) {
		return s.svc.History(r.Context(), days)
	})
}

func (s *Server) handleRetention() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buckets, err := s.svc.Retention(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, buckets)
	}
}

func (s *Server) handleWeekly() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week, err := s.svc.Weekly(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, week)
	}
}

func (s *Server) handleMaturity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.svc.Maturity(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, m)
	}
}

func (s *Server) handleDueBySubject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := s.svc.DueCountsBySubject(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, counts)
	}
}

// Topics

func (s *Server) handleListTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		topics, err := s.svc.ListTopics(r.Context(), subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toTopicResponses(topics))
	}
}

func (s *Server) handleDueTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		topics, err := s.svc.DueTopics(r.Context(), subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toTopicResponses(topics))
	}
}

func (s *Server) handleAddTopic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		if req.Importance == 0 {
			req.Importance = domain.DefaultImportance
		}
		ts, err := s.svc.AddTopic(r.Context(), req.SubjectID, req.Topic, req.Importance)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, toTopicResponse(ts))
	}
}

func (s *Server) handleSetImportance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		ts, err := s.svc.SetTopicImportance(r.Context(), req.SubjectID, req.Topic, req.Importance)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toTopicResponse(ts))
	}
}

func (s *Server) handleSyncTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		created, err := s.svc.SyncTopicsFromCards(r.Context(), subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]int{"created": created})
	}
}

func (s *Server) handleGradeTopic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeTopicRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		ts, err := s.svc.GradeTopic(r.Context(), req.SubjectID, req.Topic, *req.ScorePercent)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toTopicResponse(ts))
	}
}

func (s *Server) handleRecommendations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 10)
		if err != nil {
			handleError(w, r, err)
			return
		}
		recs, err := s.svc.Recommend(r.Context(), limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toRecommendationResponses(recs))
	}
}

// Maintenance

func (s *Server) handleRebuild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := s.svc.RebuildDailyAggregates(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]int64{"days": days})
	}
}

func (s *Server) handleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		diffs, err := s.svc.VerifyDailyAggregates(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if diffs == nil {
			diffs = []analytics.Inconsistency{}
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"consistent":      len(diffs) == 0,
			"inconsistencies": diffs,
		})
	}
}

func (s *Server) handleResetAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		n, err := s.svc.ResetAll(r.Context(), req.ClearHistory)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]int64{"reset": n})
	}
}

// Search and import

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			handleError(w, r, fmt.Errorf("%w: q is required", srs.ErrInvalidInput))
			return
		}
		subjectID, err := querySubject(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", retrieval.DefaultLimit)
		if err != nil {
			handleError(w, r, err)
			return
		}

		cards, err := s.svc.ListCards(r.Context(), subjectID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		retriever, err := retrieval.New(r.Context(), retrieval.DocumentsFromCards(cards), s.embedder)
		if err != nil {
			handleError(w, r, err)
			return
		}
		results, err := retriever.Search(r.Context(), query, retrieval.Options{SubjectID: subjectID, Limit: limit})
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK,
			toSearchResponse(retriever.Capability(), results, retrieval.ContextFor(results, maxContextChars)))
	}
}

func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if err := s.decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		start := time.Now()
		rep, err := s.importer.Import(r.Context(), req.Source, req.Subject)
		if err != nil {
			handleError(w, r, err)
			return
		}
		loggerFrom(r.Context()).Info("Import finished", "source", req.Source, "took", time.Since(start))
		respondJSON(w, r, http.StatusOK, toImportResponse(rep))
	}
}
