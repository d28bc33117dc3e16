package analyses

import (
	"sync"
	"time"
)

const createLimitWindow = 1 * time.Second

// createLimiter throttles repeated analysis creation for the same client and
// stock code. Polling is never throttled; only kickoffs are.
type createLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newCreateLimiter(window time.Duration, now func() time.Time) *createLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = createLimitWindow
	}
	return &createLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

func (l *createLimiter) Allow(clientIP, stockCode string) bool {
	if l == nil {
		return true
	}
	key := clientIP + "|" + stockCode
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit[key]; ok {
		if now.Sub(last) < l.window {
			return false
		}
	}
	l.lastHit[key] = now
	return true
}

func (l *createLimiter) RetryAfterSeconds() int {
	if l == nil {
		return int(createLimitWindow.Seconds())
	}
	return int(l.window.Seconds())
}
