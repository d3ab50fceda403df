// Package memstore is a process-local backend for the watchlist and auth
// services. It backs -store=memory and the service tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Store keeps identities and account documents.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]models.UserAccount
	identities map[string]identityRecord // by email

	// FailAccounts, when set, is returned by CreateAccount.
	FailAccounts error
}

type identityRecord struct {
	ident models.Identity
	hash  string
}

func NewStore() *Store {
	return &Store{
		accounts:   make(map[string]models.UserAccount),
		identities: make(map[string]identityRecord),
	}
}

func (s *Store) CreateIdentity(ctx context.Context, ident models.Identity, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(ident.Email)
	if _, ok := s.identities[key]; ok {
		return failure.ErrEmailInUse
	}
	s.identities[key] = identityRecord{ident: ident, hash: passwordHash}
	return nil
}

func (s *Store) IdentityByEmail(ctx context.Context, email string) (models.Identity, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.identities[strings.ToLower(email)]
	if !ok {
		return models.Identity{}, "", failure.ErrNotFound
	}
	return rec.ident, rec.hash, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct *models.UserAccount) error {
	if s.FailAccounts != nil {
		return s.FailAccounts
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.UserID]; ok {
		return nil
	}
	cp := *acct
	cp.Watchlist = clone(acct.Watchlist)
	s.accounts[acct.UserID] = cp
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return nil, failure.ErrNotFound
	}
	acct.Watchlist = clone(acct.Watchlist)
	return &acct, nil
}

func (s *Store) SaveWatchlist(ctx context.Context, userID string, list []models.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return failure.ErrNotFound
	}
	acct.Watchlist = clone(list)
	s.accounts[userID] = acct
	return nil
}

// Accounts reports how many account documents exist.
func (s *Store) Accounts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func clone(list []models.WatchlistEntry) []models.WatchlistEntry {
	out := make([]models.WatchlistEntry, len(list))
	copy(out, list)
	return out
}

// Sessions is an expiring token table.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	now      func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]models.Session), now: time.Now}
}

func (s *Sessions) Create(ctx context.Context, ident models.Identity, ttl time.Duration) (models.Session, error) {
	now := s.now().UTC()
	sess := models.Session{
		Token:     uuid.NewString(),
		UserID:    ident.ID,
		Email:     ident.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *Sessions) Get(ctx context.Context, token string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return models.Session{}, failure.ErrNotAuthenticated
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return models.Session{}, failure.ErrNotAuthenticated
	}
	return sess, nil
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Throttle allows limit attempts per key per window, refilling evenly
// across the window. Each key gets its own token bucket.
type Throttle struct {
	every rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	nowFn    func() time.Time
}

func NewThrottle(limit int, window time.Duration) *Throttle {
	if limit <= 0 {
		limit = 1
	}
	return &Throttle{
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		limiters: make(map[string]*rate.Limiter),
		nowFn:    time.Now,
	}
}

func (t *Throttle) Allow(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(t.every, t.burst)
		t.limiters[key] = lim
	}
	t.mu.Unlock()

	return lim.AllowN(t.nowFn(), 1), nil
}
