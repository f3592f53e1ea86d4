package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	attemptIdleTTL     = 10 * time.Minute
	attemptPruneEvery  = time.Minute
	attemptMaxClients  = 10000
	attemptLimitedBody = "Too many attempts. Please wait a few minutes before trying again."
)

// AttemptLimiter throttles login, register and password-reset posts per
// client address with a token bucket each.
type AttemptLimiter struct {
	limit    rate.Limit
	burst    int
	capacity int
	now      func() time.Time

	mu         sync.Mutex
	clients    map[string]*attemptBucket
	lastPruned time.Time
}

type attemptBucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// NewAttemptLimiter allows perSecond attempts per client with the given
// burst. A non-positive rate turns throttling off.
func NewAttemptLimiter(perSecond float64, burst int) *AttemptLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}

	return &AttemptLimiter{
		limit:    limit,
		burst:    max(burst, 1),
		capacity: attemptMaxClients,
		now:      time.Now,
		clients:  make(map[string]*attemptBucket),
	}
}

// Allow spends one attempt for client and reports whether it was available
func (l *AttemptLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPruned) >= attemptPruneEvery {
		l.pruneIdle(now)
	}

	b, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= l.capacity {
			l.dropLeastRecent()
		}
		b = &attemptBucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.seen = now

	return b.tokens.AllowN(now, 1)
}

// RetryAfter is the time one attempt takes to come back
func (l *AttemptLimiter) RetryAfter() time.Duration {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 0
	}
	secs := math.Ceil(1 / float64(l.limit))
	return time.Duration(secs) * time.Second
}

// Len reports how many clients are tracked
func (l *AttemptLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// pruneIdle forgets clients that have not posted for attemptIdleTTL; their
// buckets would be full again anyway. Caller holds mu.
func (l *AttemptLimiter) pruneIdle(now time.Time) {
	for client, b := range l.clients {
		if now.Sub(b.seen) > attemptIdleTTL {
			delete(l.clients, client)
		}
	}
	l.lastPruned = now
}

// Caller holds mu.
func (l *AttemptLimiter) dropLeastRecent() {
	var victim string
	var oldest time.Time
	for client, b := range l.clients {
		if victim == "" || b.seen.Before(oldest) {
			victim, oldest = client, b.seen
		}
	}
	delete(l.clients, victim)
}

// throttleAttempts answers 429 once a client has spent its auth attempts
func throttleAttempts(l *AttemptLimiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if l.Allow(client) {
			c.Next()
			return
		}

		log.Warn().Str("client_ip", client).Str("path", c.Request.URL.Path).Msg("Auth attempts throttled")
		if wait := l.RetryAfter(); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(wait/time.Second)))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": attemptLimitedBody})
	}
}
