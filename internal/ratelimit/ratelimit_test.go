package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNilLimiterAlwaysGrants(t *testing.T) {
	var l *Limiter
	for i := 0; i < 100; i++ {
		if !l.Acquire(context.Background(), time.Second) {
			t.Fatal("nil limiter must always grant")
		}
	}
}

func TestBurstGrantsImmediately(t *testing.T) {
	l := New(60)
	for i := 0; i < 60; i++ {
		if !l.Acquire(context.Background(), time.Second) {
			t.Fatalf("request %d within burst denied", i)
		}
	}
}

func TestAcquireTimesOut(t *testing.T) {
	l := New(1)
	if !l.Acquire(context.Background(), time.Second) {
		t.Fatal("first request must be granted")
	}
	// The bucket is empty and refills at one token per minute, so a short
	// timeout cannot be satisfied.
	if l.Acquire(context.Background(), 50*time.Millisecond) {
		t.Error("exhausted limiter granted within timeout")
	}
}

func TestAcquireHonorsCancel(t *testing.T) {
	l := New(1)
	l.Acquire(context.Background(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if l.Acquire(ctx, time.Minute) {
		t.Error("cancelled context granted")
	}
}

func TestMinimumRate(t *testing.T) {
	l := New(0)
	if !l.Acquire(context.Background(), time.Second) {
		t.Error("limiter with clamped rate must grant its first token")
	}
}
