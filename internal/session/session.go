// Package session keeps per-user state for the HTTP server: the uploaded
// dataset, its cleaned copy, the view toggle, an optional credential and the
// charts rendered so far. Sessions live in memory and expire after a TTL.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/table"
)

var (
	ErrNoDataset  = errors.New("Please upload a file to generate visualizations.")
	ErrNotCleaned = errors.New("Clean the dataset before switching to the cleaned view.")
	ErrNotFound   = errors.New("session not found")
)

// Chart is a rendered PNG kept for download.
type Chart struct {
	ID        string
	Title     string
	PNG       []byte
	CreatedAt time.Time
}

// MaxCharts bounds the charts retained per session; the oldest are dropped.
const MaxCharts = 50

// Session is one user's state. Its methods are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	raw         *table.Table
	cleaned     *table.Table
	showCleaned bool
	apiKey      string
	charts      []Chart
	lastSeen    time.Time
}

// SetDataset replaces the dataset and drops any cleaned copy.
func (s *Session) SetDataset(t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw, s.cleaned, s.showCleaned = t, nil, false
}

// SetCleaned stores the cleaned copy and switches the view to it.
func (s *Session) SetCleaned(t *table.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return ErrNoDataset
	}
	s.cleaned, s.showCleaned = t, true
	return nil
}

// Raw returns the uploaded dataset.
func (s *Session) Raw() (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, ErrNoDataset
	}
	return s.raw, nil
}

// ShowCleaned toggles between the raw and cleaned view.
func (s *Session) ShowCleaned(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return ErrNoDataset
	}
	if on && s.cleaned == nil {
		return ErrNotCleaned
	}
	s.showCleaned = on
	return nil
}

// Current returns the table in view and whether it is the cleaned copy.
func (s *Session) Current() (*table.Table, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, false, ErrNoDataset
	}
	if s.showCleaned && s.cleaned != nil {
		return s.cleaned, true, nil
	}
	return s.raw, false, nil
}

// HasCleaned reports whether a cleaned copy exists.
func (s *Session) HasCleaned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleaned != nil
}

func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// AddChart stores a rendered chart.
func (s *Session) AddChart(c Chart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.charts = append(s.charts, c)
	if over := len(s.charts) - MaxCharts; over > 0 {
		s.charts = append([]Chart(nil), s.charts[over:]...)
	}
}

// Chart looks up a chart by ID.
func (s *Session) Chart(id string) (Chart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

// Charts returns the IDs of the stored charts, oldest first.
func (s *Session) Charts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.charts))
	for i, c := range s.charts {
		ids[i] = c.ID
	}
	return ids
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Store holds live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
	onChange func(n int)
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger used by eviction.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithSizeHook is called with the session count after every change.
func WithSizeHook(fn func(n int)) Option { return func(s *Store) { s.onChange = fn } }

// NewStore returns a Store whose sessions expire after ttl of inactivity.
// A non-positive ttl disables expiry.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		log:      zap.NewNop(),
		onChange: func(int) {},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create starts a new session.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{ID: uuid.NewString(), CreatedAt: now, lastSeen: now}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.onChange(n)
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if s.ttl > 0 && sess.idleSince(now) > s.ttl {
		s.Delete(id)
		return nil, ErrNotFound
	}
	sess.touch(now)
	return sess, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or expired.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if sess, err := s.Get(id); err == nil {
			return sess, false
		}
	}
	return s.Create(), true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	s.onChange(n)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict removes expired sessions and returns how many were dropped.
func (s *Store) Evict() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	s.mu.Lock()
	dropped := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl {
			delete(s.sessions, id)
			dropped++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()
	if dropped > 0 {
		s.onChange(n)
		s.log.Debug("evicted idle sessions", zap.Int("evicted", dropped), zap.Int("remaining", n))
	}
	return dropped
}

// Run evicts expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Evict()
		}
	}
}
