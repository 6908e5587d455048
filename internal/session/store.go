package session

import (
	"context"
	"sync"
	"time"

	"whatsapp-bridge/internal/domain"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultMaxTurns = 20
)

type session struct {
	turns        []domain.Turn
	lastActivity time.Time
	search       *domain.CachedSearch
}

// keyLock is a per-user mutex that can be abandoned on context cancellation.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// Store is an in-memory, per-user conversation cache with lazy TTL eviction.
// Individual operations are atomic; callers that read and then write a
// session must hold the user's lock from Lock for the whole sequence.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	locks    map[string]*keyLock

	ttl      time.Duration
	maxTurns int
	now      func() time.Time
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		locks:    make(map[string]*keyLock),
		ttl:      DefaultTTL,
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lock acquires the exclusive lock for userKey. Requests for other users are
// never blocked by it.
func (s *Store) Lock(ctx context.Context, userKey string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[userKey]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[userKey] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(userKey, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.release(userKey, l)
		})
	}, nil
}

func (s *Store) release(userKey string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, userKey)
	}
}

// Get returns a copy of the user's turns, oldest first. An expired session is
// removed and reported as empty.
func (s *Store) Get(userKey string) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.liveLocked(userKey)
	if sess == nil {
		return nil
	}
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append adds a turn, creating the session on first use, and keeps only the
// most recent maxTurns entries.
func (s *Store) Append(userKey string, role domain.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := s.ensureLocked(userKey, now)
	sess.turns = append(sess.turns, domain.Turn{Role: role, Content: content, Timestamp: now})
	if over := len(sess.turns) - s.maxTurns; over > 0 {
		trimmed := make([]domain.Turn, s.maxTurns)
		copy(trimmed, sess.turns[over:])
		sess.turns = trimmed
	}
	sess.lastActivity = now
}

// SetSearchCache replaces the user's cached search results. Empty result sets
// are ignored.
func (s *Store) SetSearchCache(userKey string, results []domain.Listing) {
	if len(results) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := s.ensureLocked(userKey, now)
	cp := make([]domain.Listing, len(results))
	copy(cp, results)
	sess.search = &domain.CachedSearch{Results: cp, CapturedAt: now}
	sess.lastActivity = now
}

// SearchCache returns the cached results or nil when none are held.
func (s *Store) SearchCache(userKey string) []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.liveLocked(userKey)
	if sess == nil || sess.search == nil {
		return nil
	}
	out := make([]domain.Listing, len(sess.search.Results))
	copy(out, sess.search.Results)
	return out
}

// Clear drops the user's session, including cached search results.
func (s *Store) Clear(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userKey)
}

// Len reports the number of sessions held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) liveLocked(userKey string) *session {
	sess, ok := s.sessions[userKey]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.lastActivity) > s.ttl {
		delete(s.sessions, userKey)
		return nil
	}
	return sess
}

func (s *Store) ensureLocked(userKey string, now time.Time) *session {
	if sess := s.liveLocked(userKey); sess != nil {
		return sess
	}
	sess := &session{lastActivity: now}
	s.sessions[userKey] = sess
	return sess
}
