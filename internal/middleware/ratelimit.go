package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinical-risk-scorer/internal/domain"
)

const defaultMaxClients = 10000

// RateLimiter keeps one token bucket per client IP. The table of buckets is
// an LRU so an unbounded number of clients cannot grow it without limit; an
// evicted client starts again with a full bucket.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache
	mu      sync.Mutex
	logger  *logrus.Logger
}

// NewRateLimiter creates a new per-client rate limiter
func NewRateLimiter(cfg domain.RateLimitConfig, logger *logrus.Logger) (*RateLimiter, error) {
	size := cfg.MaxClients
	if size <= 0 {
		size = defaultMaxClients
	}
	clients, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		clients: clients,
		logger:  logger,
	}, nil
}

func (rl *RateLimiter) limiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.clients.Get(clientID); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Add(clientID, l)
	return l
}

// Allow reports whether clientID may make a request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.limiter(clientID).Allow()
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.clients.Len()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if rl.Allow(clientID) {
			c.Next()
			return
		}

		rl.logger.WithFields(logrus.Fields{
			"client_ip": clientID,
			"path":      c.Request.URL.Path,
		}).Warn("Request rate limit exceeded")

		c.AbortWithStatusJSON(http.StatusTooManyRequests, &domain.ErrorResponse{
			Code:      domain.CodeRateLimit,
			Message:   "too many requests",
			Timestamp: time.Now().UTC(),
			RequestID: c.GetString(RequestIDKey),
		})
	}
}
