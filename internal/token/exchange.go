package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"reelscrape/internal/challenge"
	"reelscrape/internal/media"
)

// DefaultTTL is how long a solved Turnstile token is reused.
const DefaultTTL = 9 * time.Minute

// maxJoinAttempts bounds how often a waiter re-joins after the solve it was
// sharing was cancelled by its leader.
const maxJoinAttempts = 3

// SolveFunc produces a fresh token.
type SolveFunc func(ctx context.Context) (string, error)

// ForSiteKey binds a solver to a site key.
func ForSiteKey(s challenge.Solver, siteKey string) SolveFunc {
	return func(ctx context.Context) (string, error) {
		return s.Solve(ctx, siteKey)
	}
}

// Exchange returns cached tokens while they are fresh and solves new ones
// otherwise. Concurrent misses for the same key share one solve.
type Exchange struct {
	store Store
	ttl   time.Duration
	clock Clock
	group singleflight.Group
	log   logrus.FieldLogger
}

// NewExchange creates an Exchange. A zero ttl means DefaultTTL and a nil
// clock means time.Now.
func NewExchange(store Store, ttl time.Duration, clock Clock, log logrus.FieldLogger) *Exchange {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Exchange{
		store: store,
		ttl:   ttl,
		clock: clock,
		log:   log.WithField("component", "token"),
	}
}

// TTL returns the configured token lifetime.
func (e *Exchange) TTL() time.Duration {
	return e.ttl
}

// GetToken returns the cached token for key when it is younger than the TTL
// and calls solve otherwise. Solver failures wrap media.ErrChallengeFailed
// and leave the cache untouched, as does a cancelled solve.
func (e *Exchange) GetToken(ctx context.Context, key string, solve SolveFunc) (string, error) {
	if tok, ok := e.cached(ctx, key); ok {
		return tok, nil
	}

	var lastErr error
	for range maxJoinAttempts {
		ch := e.group.DoChan(key, func() (any, error) {
			return e.solve(ctx, key, solve)
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(string), nil
			}
			lastErr = res.Err
			// The shared solve belonged to a caller that gave up; ours is still live.
			if media.IsCancelled(res.Err) && ctx.Err() == nil && res.Shared {
				continue
			}
			return "", res.Err
		}
	}
	return "", lastErr
}

func (e *Exchange) cached(ctx context.Context, key string) (string, bool) {
	tok, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.WithError(err).WithField("key", key).Warn("reading token cache")
		return "", false
	}
	if !ok || !tok.Fresh(e.clock(), e.ttl) {
		return "", false
	}
	e.log.WithField("key", key).Debug("using cached token")
	return tok.Value, true
}

func (e *Exchange) solve(ctx context.Context, key string, solve SolveFunc) (string, error) {
	// A concurrent leader may have stored a token since our miss.
	if tok, ok := e.cached(ctx, key); ok {
		return tok, nil
	}

	e.log.WithField("key", key).Debug("solving challenge")
	value, err := solve(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		if errors.Is(err, media.ErrChallengeFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", media.ErrChallengeFailed, err)
	}
	if value == "" {
		return "", fmt.Errorf("%w: solver returned an empty token", media.ErrChallengeFailed)
	}

	if err := e.store.Put(ctx, key, AuthToken{Value: value, IssuedAt: e.clock()}); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("caching token")
	}
	return value, nil
}

// Invalidate drops the cached token for key so the next GetToken re-solves.
// Call it when the remote side rejects a token.
func (e *Exchange) Invalidate(ctx context.Context, key string) error {
	e.group.Forget(key)
	if err := e.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidating token %q: %w", key, err)
	}
	e.log.WithField("key", key).Debug("token invalidated")
	return nil
}
