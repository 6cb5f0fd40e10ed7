// Package session keeps uploads in memory between questions. Nothing is
// persisted; idle sessions are evicted by a background sweeper.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheetsql/sheetsql/internal/observability"
	"github.com/sheetsql/sheetsql/internal/pipeline"
)

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// Session owns one upload. Questions against it are serialized.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	upload   pipeline.Upload
	lastUsed time.Time
}

// Use runs fn with exclusive access to the session's current upload.
func (s *Session) Use(fn func(upload pipeline.Upload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.upload)
}

func (s *Session) Upload() pipeline.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// Replace swaps in a new upload, waiting for any in-flight question.
func (s *Session) Replace(upload pipeline.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = upload
}

type Store struct {
	Config Config
	Logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	s := &Store{Config: cfg, Logger: logger, sessions: map[string]*Session{}, now: time.Now}
	s.ensureDefaults()
	return s
}

// Create stores upload under a new random id. When the store is full the
// least recently used session is evicted first.
func (s *Store) Create(upload pipeline.Upload) *Session {
	now := s.now()
	session := &Session{ID: uuid.NewString(), CreatedAt: now, upload: upload, lastUsed: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.sessions) >= s.Config.MaxSessions {
		s.evictOldestLocked()
	}
	s.sessions[session.ID] = session
	observability.SetActiveSessions(len(s.sessions))
	return session
}

// Get returns the session and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	session.lastUsed = s.now()
	return session, true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	observability.SetActiveSessions(len(s.sessions))
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and reports how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.Config.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	observability.SetActiveSessions(len(s.sessions))
	observability.AddExpiredSessions(removed)
	return removed
}

// Run sweeps on every tick until ctx is canceled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.Logger.InfoContext(ctx, "sessions expired", slog.Int("removed", removed), slog.Int("remaining", s.Len()))
			}
		}
	}
}

func (s *Store) evictOldestLocked() {
	if len(s.sessions) == 0 {
		return
	}
	ordered := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		ordered = append(ordered, session)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].lastUsed.Before(ordered[j].lastUsed)
	})
	delete(s.sessions, ordered[0].ID)
	s.Logger.Info("session evicted", slog.String("session_id", ordered[0].ID), slog.String("reason", "capacity"))
}

func (s *Store) ensureDefaults() {
	if s.Config.TTL <= 0 {
		s.Config.TTL = 30 * time.Minute
	}
	if s.Config.SweepInterval <= 0 {
		s.Config.SweepInterval = time.Minute
	}
	if s.Config.MaxSessions <= 0 {
		s.Config.MaxSessions = 100
	}
}
