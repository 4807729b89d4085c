package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewBucketDisabled(t *testing.T) {
	b := NewBucket(Config{})
	if b != nil {
		t.Fatalf("expected nil bucket for zero rate")
	}
	if !b.Allow() {
		t.Error("nil bucket should always allow")
	}
	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("nil bucket Wait() = %v", err)
	}
}

func TestBucketBurstThenRefill(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBucket(Config{RequestsPerSecond: 2, BurstSize: 2})
	b.now = func() time.Time { return now }
	b.lastRefill = now

	if !b.Allow() || !b.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if b.Allow() {
		t.Fatal("third request should be limited")
	}
	if wait := b.reserve(); wait != 500*time.Millisecond {
		t.Errorf("reserve() = %v, want 500ms", wait)
	}

	now = now.Add(500 * time.Millisecond)
	if !b.Allow() {
		t.Error("token should refill after 500ms at 2 rps")
	}
}

func TestBucketWaitHonoursContext(t *testing.T) {
	b := NewBucket(Config{RequestsPerSecond: 0.001, BurstSize: 1})
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}
