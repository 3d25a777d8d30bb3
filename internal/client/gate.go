package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/charleshuang3/authsession/internal/contract"
)

const (
	// DefaultRefreshBefore is how close to expiry an access token gets
	// refreshed ahead of use.
	DefaultRefreshBefore = 15 * time.Minute

	defaultRetryInitialInterval = time.Second
	defaultRetryMaxInterval     = 30 * time.Second
	defaultRetryMaxElapsedTime  = 5 * time.Minute

	refreshKey = "refresh"
)

type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime bounds retrying. The stored credential is kept when it
	// runs out.
	MaxElapsedTime time.Duration
}

func (c *RetryConfig) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaultRetryInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultRetryMaxInterval
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = defaultRetryMaxElapsedTime
	}
}

func (c RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = c.MaxElapsedTime
	b.Reset()
	return b
}

type refreshFunc func(ctx context.Context, body *contract.RefreshTokenBody) (*contract.AuthPayload, error)

// RefreshGate hands out a live access token. At most one refresh request is in
// flight per gate; callers arriving meanwhile wait for it and share its result,
// so concurrent requests never rotate the same refresh token twice.
type RefreshGate struct {
	group   singleflight.Group
	tokens  *TokenStore
	refresh refreshFunc
	before  time.Duration
	retry   RetryConfig
	now     func() time.Time
}

func newRefreshGate(tokens *TokenStore, refresh refreshFunc, before time.Duration, retry RetryConfig) *RefreshGate {
	if before <= 0 {
		before = DefaultRefreshBefore
	}
	retry.applyDefaults()
	return &RefreshGate{
		tokens:  tokens,
		refresh: refresh,
		before:  before,
		retry:   retry,
		now:     time.Now,
	}
}

// AuthToken returns the stored credential, refreshed first when its access
// token is expiring. A missing or rejected credential is reported as
// contract.CodeUnauthorised, after removing it from storage.
func (g *RefreshGate) AuthToken(ctx context.Context) (*AuthToken, error) {
	// the shared refresh outlives any single waiter
	ch := g.group.DoChan(refreshKey, func() (any, error) {
		return g.resolve(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*AuthToken), nil
	}
}

func (g *RefreshGate) resolve(ctx context.Context) (*AuthToken, error) {
	token, err := g.tokens.Get()
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: %w", contract.CodeUnauthorised, ErrMissingAuthToken)
	}

	if !token.AccessToken.ExpiringWithin(g.before, g.now()) {
		return token, nil
	}

	body := &contract.RefreshTokenBody{
		UserID:       token.UserID,
		RefreshToken: token.RefreshToken,
	}

	operation := func() (*AuthToken, error) {
		payload, err := g.refresh(ctx, body)
		if err == nil {
			return g.store(token, payload)
		}

		var code contract.Code
		if errors.As(err, &code) && invalidatingCodes.Contains(code) {
			logger.Info().Str("code", string(code)).Msg("Refresh token rejected, removing credentials")
			if rmErr := g.tokens.Remove(); rmErr != nil {
				logger.Error().Err(rmErr).Msg("Failed to remove credentials")
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: %w", contract.CodeUnauthorised, code))
		}
		if retryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("wait", wait).Msg("Refresh failed, retrying")
	}

	return backoff.RetryNotifyWithData(operation, g.retry.backOff(), notify)
}

func (g *RefreshGate) store(old *AuthToken, payload *contract.AuthPayload) (*AuthToken, error) {
	token := &AuthToken{
		UserID:       old.UserID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}
	if err := g.tokens.Set(token); err != nil {
		return nil, backoff.Permanent(err)
	}
	return token, nil
}
