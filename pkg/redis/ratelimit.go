package redis

import (
	"context"
	"time"
)

// Window is the state of one fixed rate limit window after counting a request.
type Window struct {
	Allowed bool
	Count   int64
	// ResetIn is how long until the counter expires; set only when the request is refused.
	ResetIn time.Duration
}

// Allow counts a request against scope and reports whether it fits within limit for the
// current window. The first hit in a window sets the expiry. A counter found without one,
// left by a crash between INCR and EXPIRE, is given the window again rather than blocking
// forever.
func (c *Client) Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if c.store == nil {
		return Window{}, errNotInitialized
	}
	k := c.RateLimitKey(scope)
	count, err := c.store.Incr(ctx, k).Result()
	if err != nil {
		return Window{}, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, k, window).Err(); err != nil {
			return Window{}, err
		}
	}
	result := Window{Allowed: count <= limit, Count: count}
	if result.Allowed {
		return result, nil
	}

	ttl, err := c.store.PTTL(ctx, k).Result()
	if err != nil {
		return Window{}, err
	}
	if ttl < 0 {
		if err := c.store.Expire(ctx, k, window).Err(); err != nil {
			return Window{}, err
		}
		ttl = window
	}
	result.ResetIn = ttl
	return result, nil
}
