/*
Copyright © 2026 Deutsche Telekom AG
*/
package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPollRetryBackoff(t *testing.T) {
	backoff := NewPollRetryBackoff(2 * time.Second)

	// Verify initial configuration
	if backoff.Duration != 250*time.Millisecond {
		t.Errorf("Expected Duration 250ms, got %v", backoff.Duration)
	}
	if backoff.Factor != 1.5 {
		t.Errorf("Expected Factor 1.5, got %v", backoff.Factor)
	}
	if backoff.Steps != 20 {
		t.Errorf("Expected Steps 20, got %v", backoff.Steps)
	}
	if backoff.Jitter != 0.1 {
		t.Errorf("Expected Jitter 0.1, got %v", backoff.Jitter)
	}
	if backoff.Cap != 2*time.Second {
		t.Errorf("Expected Cap 2s, got %v", backoff.Cap)
	}

	// First step should return 250ms (with possible jitter)
	firstStep := backoff.Step()
	if firstStep < 225*time.Millisecond || firstStep > 275*time.Millisecond {
		t.Errorf("First step out of expected range: got %v", firstStep)
	}
}

func TestNewPollRetryBackoff_Capped(t *testing.T) {
	backoff := NewPollRetryBackoff(500 * time.Millisecond)

	var last time.Duration
	for range 30 {
		last = backoff.Step()
	}
	// Jitter may add up to 10% on top of the cap.
	if last > 550*time.Millisecond {
		t.Errorf("Expected delays to stay near the 500ms cap, got %v", last)
	}
}

func TestSleepWithContext(t *testing.T) {
	start := time.Now()
	if err := sleepWithContext(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Returned after %v, expected at least 20ms", elapsed)
	}
}

func TestSleepWithContext_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepWithContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected immediate return, took %v", elapsed)
	}
}

func TestSleepWithContext_DeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sleepWithContext(ctx, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
