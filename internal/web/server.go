// Package web serves the scheduler as a JSON API.
package web

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/conorfennell/revise/internal/importer"
	"github.com/conorfennell/revise/internal/retrieval"
	"github.com/conorfennell/revise/internal/srs"
)

// Options configures a Server. The zero value is usable.
type Options struct {
	Logger       *slog.Logger
	CORSOrigins  []string
	DefaultLimit int
	// Importer enables POST /api/import when set.
	Importer *importer.Importer
	// Embedder adds semantic matching to search when set.
	Embedder retrieval.Embedder
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc      *srs.Service
	router   *http.ServeMux
	handler  http.Handler
	log      *slog.Logger
	validate *validator.Validate
	limit    int
	importer *importer.Importer
	embedder retrieval.Embedder
}

// NewServer creates and configures a new server.
func NewServer(svc *srs.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		svc:      svc,
		router:   http.NewServeMux(),
		log:      opts.Logger,
		validate: newValidator(),
		limit:    opts.DefaultLimit,
		importer: opts.Importer,
		embedder: opts.Embedder,
	}
	s.routes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})
	s.handler = requestLogger(s.log)(c.Handler(s.router))
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	// Cards
	s.router.HandleFunc("GET /api/cards", s.handleListCards())
	s.router.HandleFunc("POST /api/cards", s.handleCreateCard())
	s.router.HandleFunc("GET /api/cards/due", s.handleDueCards())
	s.router.HandleFunc("GET /api/cards/due/count", s.handleDueCount())
	s.router.HandleFunc("GET /api/cards/overdue/count", s.handleOverdueCount())
	s.router.HandleFunc("GET /api/cards/{id}", s.handleGetCard())
	s.router.HandleFunc("PUT /api/cards/{id}", s.handleUpdateCard())
	s.router.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard())
	s.router.HandleFunc("POST /api/cards/{id}/review", s.handleReview())
	s.router.HandleFunc("POST /api/cards/{id}/reset", s.handleResetCard())
	s.router.HandleFunc("GET /api/cards/{id}/history", s.handleCardHistory())

	// Subjects and exams
	s.router.HandleFunc("GET /api/subjects", s.handleListSubjects())
	s.router.HandleFunc("POST /api/subjects", s.handleCreateSubject())
	s.router.HandleFunc("POST /api/subjects/{id}/exams", s.handleAddExam())

	// Statistics
	s.router.HandleFunc("GET /api/stats", s.handleStats())
	s.router.HandleFunc("GET /api/stats/streak", s.handleStreak())
	s.router.HandleFunc("GET /api/stats/forecast", s.handleForecast())
	s.router.HandleFunc("GET /api/stats/retention", s.handleRetention())
	s.router.HandleFunc("GET /api/stats/heatmap", s.handleHeatmap())
	s.router.HandleFunc("GET /api/stats/weekly", s.handleWeekly())
	s.router.HandleFunc("GET /api/stats/history", s.handleHistory())
	s.router.HandleFunc("GET /api/stats/maturity", s.handleMaturity())
	s.router.HandleFunc("GET /api/stats/subjects", s.handleDueBySubject())

	// Topics
	s.router.HandleFunc("GET /api/topics", s.handleListTopics())
	s.router.HandleFunc("POST /api/topics", s.handleAddTopic())
	s.router.HandleFunc("GET /api/topics/due", s.handleDueTopics())
	s.router.HandleFunc("PUT /api/topics/importance", s.handleSetImportance())
	s.router.HandleFunc("POST /api/topics/sync", s.handleSyncTopics())
	s.router.HandleFunc("POST /api/topics/grade", s.handleGradeTopic())
	s.router.HandleFunc("GET /api/topics/recommendations", s.handleRecommendations())

	// Maintenance
	s.router.HandleFunc("POST /api/maintenance/rebuild", s.handleRebuild())
	s.router.HandleFunc("GET /api/maintenance/verify", s.handleVerify())
	s.router.HandleFunc("POST /api/maintenance/reset", s.handleResetAll())

	s.router.HandleFunc("GET /api/search", s.handleSearch())
	if s.importer != nil {
		s.router.HandleFunc("POST /api/import", s.handleImport())
	}
}
