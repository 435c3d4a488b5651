package exchange

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// WeightLimiter mirrors the venue's request-weight budget. Venues report
// cumulative usage for the current window on every response; connectors
// feed that figure back through UpdateFromHeader and dispatchers consult
// ShouldDelay before the next request.
type WeightLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	used    int
	startAt time.Time
	warned  bool
}

// NewWeightLimiter sizes the tracker for a weight budget per window,
// e.g. 1200 per minute for spot, 2400 for futures.
func NewWeightLimiter(limit int, window time.Duration) *WeightLimiter {
	if limit <= 0 {
		limit = 1200
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WeightLimiter{limit: limit, window: window, startAt: time.Now()}
}

// UpdateFromHeader ingests the venue's used-weight header value. Empty
// or unparsable values are ignored.
func (wl *WeightLimiter) UpdateFromHeader(v string) {
	used, err := strconv.Atoi(v)
	if err != nil || used < 0 {
		return
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.roll()
	wl.used = used

	pct := wl.pct()
	switch {
	case pct >= 95:
		log.Printf("venue weight critical: %d/%d (%.1f%%), next request risks a ban", wl.used, wl.limit, pct)
	case pct >= 80 && !wl.warned:
		wl.warned = true
		log.Printf("venue weight high: %d/%d (%.1f%%)", wl.used, wl.limit, pct)
	}
}

// roll starts a fresh window once the current one has elapsed. Callers
// hold wl.mu.
func (wl *WeightLimiter) roll() {
	if time.Since(wl.startAt) >= wl.window {
		wl.used = 0
		wl.warned = false
		wl.startAt = time.Now()
	}
}

// Usage returns the tracked spend for the current window.
func (wl *WeightLimiter) Usage() (used, limit int, pct float64) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.roll()
	return wl.used, wl.limit, wl.pct()
}

func (wl *WeightLimiter) pct() float64 {
	return float64(wl.used) / float64(wl.limit) * 100
}

// ShouldDelay reports whether dispatchers should back off before the
// next request.
func (wl *WeightLimiter) ShouldDelay() bool {
	_, _, pct := wl.Usage()
	return pct >= 90
}
