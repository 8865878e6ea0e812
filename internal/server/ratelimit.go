package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter manages per-client request rates and daily quotas using fixed
// minute, hour and day windows.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks usage for one client IP.
type ClientUsage struct {
	MinuteStart    time.Time
	HourStart      time.Time
	DayStart       time.Time
	RequestsMinute int
	RequestsHour   int
	RequestsDay    int
	DataDay        int64
	LastSeen       time.Time
}

// NewRateLimiter creates a new rate limiter. Zero disables a limit.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit counts a request of dataSize bytes from client, or returns
// a *RateLimitError or *QuotaExceededError without counting it.
func (rl *RateLimiter) CheckRateLimit(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &ClientUsage{}
		rl.clients[client] = u
	}
	rl.roll(u, now)

	if rl.requestsPerMinute > 0 && u.RequestsMinute >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.MinuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.RequestsHour >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.HourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.DayStart.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.RequestsDay >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.RequestsDay), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.DataDay+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.DataDay, Resets: resets}
	}

	u.RequestsMinute++
	u.RequestsHour++
	u.RequestsDay++
	u.DataDay += dataSize
	u.LastSeen = now
	return nil
}

// roll starts new windows that have elapsed. Day windows start at local
// midnight.
func (rl *RateLimiter) roll(u *ClientUsage, now time.Time) {
	if now.Sub(u.MinuteStart) >= time.Minute {
		u.MinuteStart = now.Truncate(time.Minute)
		u.RequestsMinute = 0
	}
	if now.Sub(u.HourStart) >= time.Hour {
		u.HourStart = now.Truncate(time.Hour)
		u.RequestsHour = 0
	}
	if day := midnight(now); !day.Equal(u.DayStart) {
		u.DayStart = day
		u.RequestsDay = 0
		u.DataDay = 0
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GetUsage returns a copy of the usage of client.
func (rl *RateLimiter) GetUsage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// Prune forgets clients not seen for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	n := 0
	for id, u := range rl.clients {
		if u.LastSeen.Before(cutoff) {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
