// Package auth handles sign-up, sign-in and session resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type IdentityStore interface {
	CreateIdentity(ctx context.Context, ident models.Identity, passwordHash string) error
	IdentityByEmail(ctx context.Context, email string) (models.Identity, string, error)
}

// AccountCreator creates the per-user document right after sign-up.
type AccountCreator interface {
	CreateAccount(ctx context.Context, acct *models.UserAccount) error
}

type SessionStore interface {
	Create(ctx context.Context, ident models.Identity, ttl time.Duration) (models.Session, error)
	// Get fails with failure.ErrNotAuthenticated for unknown or expired tokens.
	Get(ctx context.Context, token string) (models.Session, error)
	Delete(ctx context.Context, token string) error
}

// Throttle limits sign-in attempts per key.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// bcrypt rejects passwords longer than this.
const maxPasswordBytes = 72

type Options struct {
	SessionTTL        time.Duration
	MinPasswordLength int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	identities IdentityStore
	accounts   AccountCreator
	sessions   SessionStore
	throttle   Throttle
	opts       Options
	events     *broadcaster
	now        func() time.Time
}

func NewService(identities IdentityStore, accounts AccountCreator, sessions SessionStore, throttle Throttle, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		identities: identities,
		accounts:   accounts,
		sessions:   sessions,
		throttle:   throttle,
		opts:       opts,
		events:     newBroadcaster(),
		now:        time.Now,
	}
}

// SignUpResult is returned by a successful sign-up. Warning is set when the
// identity was created but its account document or its session was not; in
// the latter case Session is empty and the client should sign in.
type SignUpResult struct {
	Session models.Session
	Warning error
}

func (s *Service) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return SignUpResult{}, err
	}
	if len(password) < s.opts.MinPasswordLength {
		return SignUpResult{}, failure.ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return SignUpResult{}, failure.ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return SignUpResult{}, failure.Auth(failure.CodeWeakPassword, err)
	}

	ident := models.Identity{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.identities.CreateIdentity(ctx, ident, string(hash)); err != nil {
		return SignUpResult{}, fmt.Errorf("create identity: %w", err)
	}

	var result SignUpResult
	acct := &models.UserAccount{
		UserID:    ident.ID,
		Email:     ident.Email,
		Watchlist: []models.WatchlistEntry{},
		CreatedAt: ident.CreatedAt,
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		logger.Log.Warn("Account document not created after sign-up",
			zap.String("user_id", ident.ID),
			zap.Error(err),
		)
		result.Warning = err
	}

	// The identity exists from here on, so a missing session must not fail
	// sign-up or the retry would hit email-already-in-use.
	sess, err := s.open(ctx, ident)
	if err != nil {
		logger.Log.Warn("Session not opened after sign-up",
			zap.String("user_id", ident.ID),
			zap.Error(err),
		)
		result.Warning = errors.Join(result.Warning, err)
	}
	result.Session = sess

	logger.Log.Info("User signed up", zap.String("user_id", ident.ID))
	return result, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.Session{}, err
	}

	allowed, err := s.throttle.Allow(ctx, email)
	if err != nil {
		// Fail open: an unavailable limiter must not lock everyone out.
		logger.Log.Warn("Sign-in throttle unavailable", zap.Error(err))
	} else if !allowed {
		return models.Session{}, failure.ErrTooManyRequests
	}

	ident, hash, err := s.identities.IdentityByEmail(ctx, email)
	if errors.Is(err, failure.ErrNotFound) {
		return models.Session{}, failure.ErrInvalidCredential
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("look up identity: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.Session{}, failure.ErrInvalidCredential
	}

	return s.open(ctx, ident)
}

// SignOut ends the session. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil && !errors.Is(err, failure.ErrNotAuthenticated) {
		return fmt.Errorf("load session: %w", err)
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if sess.Token != "" {
		s.events.publish(IdentityEvent{Kind: SignedOut, Token: token, Identity: sess.Identity()})
		logger.Log.Info("User signed out", zap.String("user_id", sess.UserID))
	}
	return nil
}

// Resolve maps a session token to its identity.
func (s *Service) Resolve(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, failure.ErrNotAuthenticated
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return models.Identity{}, failure.ErrNotAuthenticated
	}
	return sess.Identity(), nil
}

// Watch streams sign-in and sign-out events until ctx is done.
func (s *Service) Watch(ctx context.Context) <-chan IdentityEvent {
	return s.events.subscribe(ctx)
}

func (s *Service) open(ctx context.Context, ident models.Identity) (models.Session, error) {
	sess, err := s.sessions.Create(ctx, ident, s.opts.SessionTTL)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.events.publish(IdentityEvent{Kind: SignedIn, Token: sess.Token, Identity: ident})
	return sess, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", failure.ErrInvalidEmail
	}
	return email, nil
}
