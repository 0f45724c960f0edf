package ratelimit

import (
	"testing"
	"time"
)

func TestBindingRateLimiter_AllowsUpToMax(t *testing.T) {
	rl := NewBindingRateLimiter()
	defer rl.Stop()

	key := BindingKey("group-1", "server-1")
	window := time.Minute

	for i := 0; i < 3; i++ {
		if !rl.Allow(key, 3, window) {
			t.Fatalf("expected message %d to be allowed within the cap", i+1)
		}
	}
	if rl.Allow(key, 3, window) {
		t.Fatal("expected the 4th message to be rejected once the cap is reached")
	}
}

func TestBindingRateLimiter_WindowResetsAfterElapsing(t *testing.T) {
	rl := NewBindingRateLimiter()
	defer rl.Stop()

	key := BindingKey("group-1", "server-1")
	window := 20 * time.Millisecond

	if !rl.Allow(key, 1, window) {
		t.Fatal("expected the first message to be allowed")
	}
	if rl.Allow(key, 1, window) {
		t.Fatal("expected the second message to be rejected inside the same window")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.Allow(key, 1, window) {
		t.Fatal("expected the window to reset once it elapsed")
	}
}

func TestBindingRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewBindingRateLimiter()
	defer rl.Stop()

	keyA := BindingKey("group-a", "server-1")
	keyB := BindingKey("group-b", "server-1")

	if !rl.Allow(keyA, 1, time.Minute) {
		t.Fatal("expected the first message on keyA to be allowed")
	}
	if rl.Allow(keyA, 1, time.Minute) {
		t.Fatal("expected keyA to be exhausted")
	}
	if !rl.Allow(keyB, 1, time.Minute) {
		t.Fatal("expected keyB's bucket to be unaffected by keyA's usage")
	}
}

func TestBindingRateLimiter_ResetClearsBucket(t *testing.T) {
	rl := NewBindingRateLimiter()
	defer rl.Stop()

	key := BindingKey("group-1", "server-1")
	if !rl.Allow(key, 1, time.Minute) {
		t.Fatal("expected the first message to be allowed")
	}
	if rl.Allow(key, 1, time.Minute) {
		t.Fatal("expected the bucket to be exhausted before Reset")
	}

	rl.Reset(key)

	if !rl.Allow(key, 1, time.Minute) {
		t.Fatal("expected Reset to clear the bucket's count")
	}
}
