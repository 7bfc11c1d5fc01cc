package httpapi

import (
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(0.001, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("separate client should have its own bucket")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	rl := newRateLimiter(1, 1)
	rl.Allow("a")
	rl.Allow("b")

	rl.evict(time.Now())
	if got := rl.size(); got != 2 {
		t.Fatalf("size after fresh evict = %d, want 2", got)
	}

	rl.evict(time.Now().Add(10 * time.Minute))
	if got := rl.size(); got != 0 {
		t.Fatalf("size after stale evict = %d, want 0", got)
	}
}
