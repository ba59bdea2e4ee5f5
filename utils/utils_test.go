package utils

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLeveledLogger(&bytes.Buffer{}, "error")}

	calls := 0
	err := r.Do("flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v; want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryWrapsLastError(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	boom := errors.New("boom")

	err := r.Do("always-fails", func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Do returned %v; want wrapped %v", err, boom)
	}
	if !strings.Contains(err.Error(), "always-fails failed after 2 attempts") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.DoContext(ctx, "cancelled", func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DoContext returned %v; want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLeveledLogger(&buf, "warn")

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

type fakePoster struct {
	tags    []string
	records []map[string]interface{}
	closed  bool
}

func (f *fakePoster) Post(tag string, message interface{}) error {
	f.tags = append(f.tags, tag)
	f.records = append(f.records, message.(map[string]interface{}))
	return nil
}

func (f *fakePoster) Close() error {
	f.closed = true
	return nil
}

func TestTraceShipperPostsEveryLine(t *testing.T) {
	fake := &fakePoster{}
	ts := newTraceShipper(fake, "")

	if err := ts.Ship("run-1", []string{"first", "second"}); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if len(fake.records) != 2 {
		t.Fatalf("records: got %d, want 2", len(fake.records))
	}
	if fake.tags[0] != "boohill.trace" {
		t.Errorf("tag: got %q, want default tag", fake.tags[0])
	}
	if fake.records[1]["seq"] != 2 || fake.records[1]["message"] != "second" || fake.records[1]["run_id"] != "run-1" {
		t.Errorf("unexpected record: %#v", fake.records[1])
	}

	if err := ts.Close(); err != nil || !fake.closed {
		t.Errorf("Close: err=%v closed=%v", err, fake.closed)
	}
}

func TestNilTraceShipperIsNoop(t *testing.T) {
	var ts *TraceShipper
	if err := ts.Ship("run", []string{"x"}); err != nil {
		t.Errorf("nil Ship returned %v", err)
	}
	if err := ts.Close(); err != nil {
		t.Errorf("nil Close returned %v", err)
	}
}
