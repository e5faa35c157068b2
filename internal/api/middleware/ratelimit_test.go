package middleware

import (
	"testing"
	"time"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	l := newLimiter(10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if ok, _ := l.take("user-1"); !ok {
			t.Fatalf("call %d refused inside burst", i+1)
		}
	}
	ok, wait := l.take("user-1")
	if ok {
		t.Fatal("11th call allowed, want refused")
	}
	if wait <= 0 || wait > 100*time.Millisecond {
		t.Errorf("wait = %v, want (0, 100ms]", wait)
	}

	// Other callers have their own bucket.
	if ok, _ := l.take("user-2"); !ok {
		t.Error("second caller refused")
	}

	now = now.Add(100 * time.Millisecond)
	if ok, _ := l.take("user-1"); !ok {
		t.Error("call after refill refused")
	}
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	l := newLimiter(10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.take("old")
	now = now.Add(time.Hour)
	l.take("fresh")

	l.sweep(now.Add(-bucketTTL))
	if _, ok := l.buckets["old"]; ok {
		t.Error("idle bucket survived sweep")
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Error("active bucket was swept")
	}
}
