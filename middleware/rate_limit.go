package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// requestWindow tracks requests from one client IP
type requestWindow struct {
	Count    int
	FirstAt  time.Time
	LockedAt time.Time
	IsLocked bool
}

// RateLimiter limits how often a client may hit the monitor endpoints. The
// scheduler calls once a minute; anything beyond the window is either a
// misconfigured scheduler or abuse.
type RateLimiter struct {
	mu           sync.RWMutex
	windows      map[string]*requestWindow
	maxRequests  int
	windowPeriod time.Duration
	lockDuration time.Duration
}

// Global monitor rate limiter instance
var monitorRateLimiter *RateLimiter

// InitMonitorRateLimiter initializes the global monitor rate limiter
func InitMonitorRateLimiter() {
	monitorRateLimiter = NewRateLimiter(10, 1*time.Minute, 5*time.Minute)
	// Start cleanup goroutine
	go monitorRateLimiter.startCleanup()
}

// NewRateLimiter creates a new rate limiter
// maxRequests: maximum requests allowed within the window
// windowPeriod: time window for counting requests
// lockDuration: how long to lock the IP after the limit is exceeded
func NewRateLimiter(maxRequests int, windowPeriod, lockDuration time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:      make(map[string]*requestWindow),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
		lockDuration: lockDuration,
	}
}

// startCleanup periodically cleans up old entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, window := range rl.windows {
		if window.IsLocked {
			if now.Sub(window.LockedAt) > rl.lockDuration {
				delete(rl.windows, ip)
			}
		} else if now.Sub(window.FirstAt) > rl.windowPeriod {
			delete(rl.windows, ip)
		}
	}
}

// Allow records a request from an IP and reports whether it is allowed,
// along with the retry delay when it is not.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.windows[ip]

	if !exists {
		rl.windows[ip] = &requestWindow{Count: 1, FirstAt: now}
		return true, 0
	}

	if window.IsLocked {
		remaining := rl.lockDuration - now.Sub(window.LockedAt)
		if remaining > 0 {
			return false, remaining
		}
		// Lock expired, reset
		rl.windows[ip] = &requestWindow{Count: 1, FirstAt: now}
		return true, 0
	}

	if now.Sub(window.FirstAt) > rl.windowPeriod {
		rl.windows[ip] = &requestWindow{Count: 1, FirstAt: now}
		return true, 0
	}

	window.Count++
	if window.Count > rl.maxRequests {
		window.IsLocked = true
		window.LockedAt = now
		return false, rl.lockDuration
	}

	return true, 0
}

// MonitorRateLimitMiddleware creates a middleware rate limiting the monitor
// endpoints per client IP.
func MonitorRateLimitMiddleware() gin.HandlerFunc {
	// Ensure rate limiter is initialized
	if monitorRateLimiter == nil {
		InitMonitorRateLimiter()
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := monitorRateLimiter.Allow(ip)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
