// Package middleware holds gin middlewares shared by the API routes.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/charleshuang3/authsession/internal/handlers/firewall"
)

var (
	logger = log.With().Str("component", "ratelimit").Logger()
)

const (
	// idle clients are forgotten after this long
	limiterTTL = 10 * time.Minute
	maxClients = 100000

	defaultPerMinute = 30
	defaultBurst     = 10

	reasonRateLimited = "rate_limited"
)

type RateLimitConfig struct {
	// Requests allowed per minute and per client IP, in steady state.
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

func (c *RateLimitConfig) applyDefaults() {
	if c.PerMinute <= 0 {
		c.PerMinute = defaultPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	// guards get-or-create on cache
	mu    sync.Mutex
	cache *ristretto.Cache[string, *rate.Limiter]

	limit rate.Limit
	burst int
}

func NewRateLimiter(conf RateLimitConfig) (*RateLimiter, error) {
	conf.applyDefaults()

	c, err := ristretto.NewCache(&ristretto.Config[string, *rate.Limiter]{
		NumCounters: maxClients * 10,
		MaxCost:     maxClients,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &RateLimiter{
		cache: c,
		limit: rate.Every(time.Minute / time.Duration(conf.PerMinute)),
		burst: conf.Burst,
	}, nil
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.cache.Get(ip); ok {
		return lim
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.cache.SetWithTTL(ip, lim, 1, limiterTTL)
	l.cache.Wait()
	return lim
}

// Allow reports whether ip may make a request now and takes a token if so.
func (l *RateLimiter) Allow(ip string) bool {
	return l.limiter(ip).Allow()
}

// Middleware answers 429 once the client IP has used up its bucket.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			logger.Warn().Str("ip", ip).Str("route", c.FullPath()).Msg("Rate limited")
			firewall.MarkSuspicious(c, reasonRateLimited)
			c.String(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) Close() {
	l.cache.Close()
}
