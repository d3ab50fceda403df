package cache

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
)

// SignInThrottle is a per-email GCRA limiter shared by every API instance.
type SignInThrottle struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

func NewSignInThrottle(client *Client, perMinute int) *SignInThrottle {
	return &SignInThrottle{
		limiter: redis_rate.NewLimiter(client.rdb),
		limit:   redis_rate.PerMinute(perMinute),
	}
}

func (t *SignInThrottle) Allow(ctx context.Context, email string) (bool, error) {
	res, err := t.limiter.Allow(ctx, "signin:"+email, t.limit)
	if err != nil {
		return false, err
	}
	return res.Allowed > 0, nil
}
