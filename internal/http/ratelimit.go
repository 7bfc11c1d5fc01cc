package httpapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	ttl   time.Duration
	bkts  map[string]*bucket // key: ip
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		ttl:   5 * time.Minute,
		bkts:  make(map[string]*bucket),
	}
}

func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bkt, ok := rl.bkts[key]
	if !ok {
		bkt = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.bkts[key] = bkt
	}
	bkt.lastSeen = time.Now()
	return bkt.limiter.Allow()
}

// Run evicts buckets idle for longer than ttl until ctx is done.
func (rl *rateLimiter) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.evict(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.bkts {
		if now.Sub(b.lastSeen) > rl.ttl {
			delete(rl.bkts, k)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.bkts)
}
