package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// SessionStore keeps sessions as JSON under session:<token>, expiring with
// the session itself.
type SessionStore struct {
	client *Client
	now    func() time.Time
}

func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, ident models.Identity, ttl time.Duration) (models.Session, error) {
	now := s.now().UTC()
	sess := models.Session{
		Token:     uuid.NewString(),
		UserID:    ident.ID,
		Email:     ident.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return models.Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.rdb.Set(ctx, sessionPrefix+sess.Token, payload, ttl).Err(); err != nil {
		return models.Session{}, failure.Store(failure.CodeUnavailable, err)
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (models.Session, error) {
	raw, err := s.client.rdb.Get(ctx, sessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, failure.ErrNotAuthenticated
	}
	if err != nil {
		return models.Session{}, failure.Store(failure.CodeUnavailable, err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return models.Session{}, failure.Store(failure.CodeInternal, fmt.Errorf("decode session: %w", err))
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.rdb.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return failure.Store(failure.CodeUnavailable, err)
	}
	return nil
}
