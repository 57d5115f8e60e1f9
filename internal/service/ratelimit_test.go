package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/msomdec/realty/internal/service"
)

func newLimiter(t *testing.T, rate, capacity float64) *service.RateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return service.NewRateLimiter(ctx, rate, capacity)
}

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	rl := newLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("sign-in:1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, wait := rl.Allow("sign-in:1.2.3.4")
	if ok {
		t.Fatal("4th request should be denied")
	}
	if wait <= 0 {
		t.Fatalf("expected a positive retry delay, got %v", wait)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newLimiter(t, 1, 1)

	if ok, _ := rl.Allow("contact:a"); !ok {
		t.Fatal("first request for a should be allowed")
	}
	if ok, _ := rl.Allow("contact:a"); ok {
		t.Fatal("second request for a should be denied")
	}
	if ok, _ := rl.Allow("contact:b"); !ok {
		t.Fatal("first request for b should be allowed")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := newLimiter(t, 1000, 1)

	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("first request should be allowed")
	}
	time.Sleep(10 * time.Millisecond)
	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("bucket should have refilled")
	}
}
