// Package srs is the spaced-repetition scheduler: it grades reviews, selects
// due cards, keeps the review ledger and its daily aggregates consistent, and
// schedules whole topics from assessment scores.
package srs

import (
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/sm2"
	"github.com/conorfennell/revise/internal/storage"
)

// Service holds the dependencies of the scheduler. It keeps no state besides
// the store connection and the per-card locks.
type Service struct {
	db     *storage.DB
	params *sm2.Params
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger
	locks  *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone that decides which calendar day a review
// belongs to.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithParams(p *sm2.Params) Option {
	return func(s *Service) {
		if p != nil {
			s.params = p
		}
	}
}

// NewService creates a scheduler over an open store.
func NewService(db *storage.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		params: sm2.DefaultParams(),
		loc:    time.Local,
		now:    time.Now,
		log:    slog.Default(),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the configured timezone.
func (s *Service) Today() time.Time {
	return domain.DateOf(s.now(), s.loc)
}

// keyedMutex serialises work per card ID. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[int64]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
