package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/importer"
	"github.com/conorfennell/revise/internal/srs"
	"github.com/conorfennell/revise/internal/storage"
)

var testNow = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	svc     *srs.Service
	subject domain.Subject
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "revise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := srs.NewService(db,
		srs.WithClock(func() time.Time { return testNow }),
		srs.WithLocation(time.UTC),
		srs.WithLogger(logger),
	)
	subject, err := svc.CreateSubject(context.Background(), "Biology", "#22aa44")
	require.NoError(t, err)

	opts.Logger = logger
	return &testEnv{srv: NewServer(svc, opts), svc: svc, subject: subject}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.srv.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) card(t *testing.T, question, answer, topic string) cardResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/cards", map[string]any{
		"subject_id": e.subject.ID,
		"question":   question,
		"answer":     answer,
		"topic":      topic,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c cardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	return c
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/healthz", nil)
	_, err := uuid.Parse(rr.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	rr = httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	assert.NotEqual(t, "not-a-uuid", rr.Header().Get(requestIDHeader))
}

func TestReviewCard(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.card(t, "What is ATP?", "Energy currency", "Cells")
	assert.Equal(t, "2024-03-04", c.NextReview)

	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/review", c.ID), map[string]any{"quality": 5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got cardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, 1, got.Repetitions)
	assert.Equal(t, "2024-03-05", got.NextReview)
	assert.Equal(t, 1, got.TimesReviewed)
	assert.InDelta(t, 2.6, got.EaseFactor, 1e-9)

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d/history", c.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var events []reviewEventResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].Quality)
	assert.Equal(t, "2024-03-04", events[0].ReviewDate)
}

func TestReviewRejectsBadQuality(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.card(t, "What is ATP?", "Energy currency", "")

	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/review", c.ID), map[string]any{"quality": 9})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	detail := decodeError(t, rr)
	assert.Equal(t, "INVALID_INPUT", detail.Code)
	assert.Contains(t, detail.Message, "quality")

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/review", c.ID), map[string]any{"quality": 3, "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", c.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got cardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Zero(t, got.TimesReviewed)
}

func TestUnknownCard(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/cards/999/review", map[string]any{"quality": 4})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rr).Code)

	rr = env.do(t, http.MethodGet, "/api/cards/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/cards/999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCardLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.card(t, "Name the powerhouse", "Mitochondria", "Cells")

	rr := env.do(t, http.MethodPut, fmt.Sprintf("/api/cards/%d", c.ID), map[string]any{
		"subject_id": env.subject.ID,
		"question":   "Name the powerhouse of the cell",
		"answer":     "Mitochondria",
		"topic":      "Cells",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/cards", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cards []cardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "Name the powerhouse of the cell", cards[0].Question)

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/api/cards/%d", c.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", c.ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDueCountMatchesDueList(t *testing.T) {
	env := newTestEnv(t, Options{DefaultLimit: 2})
	for i := range 3 {
		env.card(t, fmt.Sprintf("Question %d", i), "Answer", "")
	}

	rr := env.do(t, http.MethodGet, "/api/cards/due/count", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var count map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &count))
	assert.Equal(t, 3, count["count"])

	var due []cardResponse
	rr = env.do(t, http.MethodGet, "/api/cards/due?limit=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &due))
	assert.Len(t, due, count["count"])

	rr = env.do(t, http.MethodGet, "/api/cards/due", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &due))
	assert.Len(t, due, 2)

	rr = env.do(t, http.MethodGet, "/api/cards/due?subject=x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubjectsAndExams(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/subjects", map[string]any{"name": "Chemistry", "colour": "#ff0000"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/subjects", map[string]any{"name": "Physics", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/subjects", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var subjects []subjectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &subjects))
	assert.Len(t, subjects, 2)

	path := fmt.Sprintf("/api/subjects/%d/exams", env.subject.ID)
	rr = env.do(t, http.MethodPost, path, map[string]any{"name": "Finals", "date": "2024-03-20", "topics": []string{"Cells"}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var exam examResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exam))
	assert.Equal(t, "2024-03-20", exam.Date)
	assert.Equal(t, []string{"Cells"}, exam.Topics)

	rr = env.do(t, http.MethodPost, path, map[string]any{"name": "Finals", "date": "20/03/2024"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTopics(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.card(t, "What is ATP?", "Energy currency", "Cells")
	env.card(t, "What is DNA?", "Genetic material", "Genetics")

	rr := env.do(t, http.MethodPost, "/api/topics/sync", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var synced map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &synced))
	assert.Equal(t, 2, synced["created"])

	rr = env.do(t, http.MethodPost, "/api/topics/grade", map[string]any{
		"subject_id":    env.subject.ID,
		"topic":         "Cells",
		"score_percent": 95,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var graded topicResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &graded))
	assert.Equal(t, 1, graded.AssessmentCount)
	assert.InDelta(t, 95, graded.AverageScore, 1e-9)
	assert.Equal(t, "2024-03-05", graded.NextReview)

	rr = env.do(t, http.MethodPost, "/api/topics/grade", map[string]any{
		"subject_id":    env.subject.ID,
		"topic":         "Cells",
		"score_percent": 120,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/topics/grade", map[string]any{
		"subject_id": env.subject.ID,
		"topic":      "Cells",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/topics/due", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var due []topicResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &due))
	require.Len(t, due, 1)
	assert.Equal(t, "Genetics", due[0].Topic)

	rr = env.do(t, http.MethodGet, "/api/topics/recommendations?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []recommendationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "Genetics", recs[0].Topic.Topic)
}

func TestStatsEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.card(t, "What is ATP?", "Energy currency", "")
	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/review", c.ID), map[string]any{"quality": 4})
	require.Equal(t, http.StatusOK, rr.Code)

	for _, path := range []string{
		"/api/stats",
		"/api/stats/streak",
		"/api/stats/forecast",
		"/api/stats/retention",
		"/api/stats/heatmap?days=14",
		"/api/stats/weekly",
		"/api/stats/history",
		"/api/stats/maturity",
		"/api/stats/subjects",
	} {
		rr := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr = env.do(t, http.MethodGet, "/api/stats/streak", nil)
	var streak struct {
		Current int `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &streak))
	assert.Equal(t, 1, streak.Current)

	rr = env.do(t, http.MethodGet, "/api/stats/forecast?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMaintenance(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.card(t, "What is ATP?", "Energy currency", "")
	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/review", c.ID), map[string]any{"quality": 4})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/maintenance/rebuild", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rebuilt map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rebuilt))
	assert.Equal(t, int64(1), rebuilt["days"])

	rr = env.do(t, http.MethodGet, "/api/maintenance/verify", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"consistent":true,"inconsistencies":[]}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/maintenance/reset", map[string]any{"clear_history": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d/history", c.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.card(t, "What does photosynthesis produce?", "Glucose and oxygen", "Plants")
	env.card(t, "What is osmosis?", "Diffusion of water across a membrane", "Cells")

	rr := env.do(t, http.MethodGet, "/api/search?q=photosynthesis", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "keyword", resp.Capability)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Plants: What does photosynthesis produce?", resp.Results[0].Title)
	assert.Contains(t, resp.Context, "Glucose")

	rr = env.do(t, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	notes := "T: Cells\nQ: What is ATP?\nA: Energy currency\n---\nQ: What is a ribosome?\nA: Protein factory\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cells.md"), []byte(notes), 0o644))

	env := newTestEnv(t, Options{})
	imp := importer.New(env.svc, t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	env.srv = NewServer(env.svc, Options{Logger: env.srv.log, Importer: imp})

	rr := env.do(t, http.MethodPost, "/api/import", map[string]any{"source": dir, "subject": "Biology"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rep importResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, env.subject.ID, rep.SubjectID)

	rr = env.do(t, http.MethodPost, "/api/import", map[string]any{"source": dir, "subject": "Biology"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.Parsed)
	assert.Zero(t, rep.Inserted)
	assert.Equal(t, 2, rep.Existing)
	assert.Zero(t, rep.Duplicates)
}

func TestImportDisabled(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodPost, "/api/import", map[string]any{"source": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
