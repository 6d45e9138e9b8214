package handlers

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"community-polling-backend/logging"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipRateLimiter hands out one token bucket per client IP. It is advisory
// throttling for the vote endpoint: the ledger's unique indexes are what
// actually stop duplicate votes, so voting stays correct even with this
// middleware disabled or misconfigured.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipEntry
	rate     rate.Limit
	burst    int
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(r rate.Limit, burst int) *ipRateLimiter {
	l := &ipRateLimiter{
		limiters: make(map[string]*ipEntry),
		rate:     r,
		burst:    burst,
	}
	go l.cleanup()
	return l
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (l *ipRateLimiter) cleanup() {
	for range time.Tick(10 * time.Minute) {
		l.mu.Lock()
		for ip, entry := range l.limiters {
			if time.Since(entry.lastSeen) > 30*time.Minute {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

// VoteRateLimitMiddleware throttles vote submissions per client IP.
// VOTE_RATE_LIMIT sets sustained votes per minute (default 30); disabled
// entirely with VOTE_RATE_LIMIT=0.
func VoteRateLimitMiddleware() gin.HandlerFunc {
	perMinute := 30
	if v := os.Getenv("VOTE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			perMinute = n
		}
	}
	if perMinute <= 0 {
		logging.Logger.Info("vote rate limiting disabled")
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	logging.Logger.Infof("vote rate limiting: %d/minute per IP", perMinute)

	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many votes from this address, slow down",
			})
			return
		}
		c.Next()
	}
}
