package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("schema mismatch")

	err := Retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error retried %d times", calls)
	}
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0

	err := Retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("database is locked"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustionKeepsTransientMark(t *testing.T) {
	err := Retry(context.Background(), RetryConfig{Attempts: 2, Backoff: time.Millisecond}, func() error {
		return MarkTransient(errors.New("database is locked"))
	})
	if err == nil || !IsTransient(err) {
		t.Fatalf("expected transient-marked error after exhaustion, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Fatal("plain error must not be transient")
	}
	if !IsTransient(MarkTransient(errors.New("busy"))) {
		t.Fatal("marked error must be transient")
	}
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
}
