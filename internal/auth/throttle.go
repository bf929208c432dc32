package auth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type emailLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Throttle limits login attempts per email address.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*emailLimiter
	idle     time.Duration
	now      func() time.Time
}

// NewThrottle allows perMinute attempts per address, bursting up to perMinute.
// A non-positive perMinute disables throttling.
func NewThrottle(perMinute int) *Throttle {
	t := &Throttle{
		limiters: make(map[string]*emailLimiter),
		idle:     10 * time.Minute,
		now:      time.Now,
	}
	if perMinute > 0 {
		t.limit = rate.Limit(float64(perMinute) / 60.0)
		t.burst = perMinute
	}
	return t
}

// Allow consumes one attempt for email.
func (t *Throttle) Allow(email string) bool {
	if t == nil || t.burst == 0 {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(email))
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep(now)
	el, ok := t.limiters[key]
	if !ok {
		el = &emailLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = el
	}
	el.lastAccess = now
	return el.limiter.AllowN(now, 1)
}

// Reset forgets the attempts of email after a successful login.
func (t *Throttle) Reset(email string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.limiters, strings.ToLower(strings.TrimSpace(email)))
	t.mu.Unlock()
}

// sweep drops limiters idle for longer than t.idle. Caller holds t.mu.
func (t *Throttle) sweep(now time.Time) {
	for key, el := range t.limiters {
		if now.Sub(el.lastAccess) > t.idle {
			delete(t.limiters, key)
		}
	}
}
