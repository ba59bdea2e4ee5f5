package utils

import (
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// fluentPoster is the subset of *fluent.Fluent the shipper needs.
type fluentPoster interface {
	Post(tag string, message interface{}) error
	Close() error
}

// TraceShipper forwards an import run's trace lines to fluentd. A nil
// *TraceShipper is valid and ships nothing.
type TraceShipper struct {
	client fluentPoster
	tag    string
}

// NewTraceShipper connects to fluentd at host:port. Posting is async so a
// slow collector never stalls an import.
func NewTraceShipper(host string, port int, tag string) (*TraceShipper, error) {
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("fluent: connect %s:%d: %w", host, port, err)
	}
	return newTraceShipper(client, tag), nil
}

func newTraceShipper(client fluentPoster, tag string) *TraceShipper {
	if tag == "" {
		tag = "boohill.trace"
	}
	return &TraceShipper{client: client, tag: tag}
}

// Ship posts every line as its own record, keeping the line number so the
// collector can restore order.
func (t *TraceShipper) Ship(runID string, lines []string) error {
	if t == nil || t.client == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, line := range lines {
		record := map[string]interface{}{
			"run_id":    runID,
			"seq":       i + 1,
			"message":   line,
			"timestamp": now,
		}
		if err := t.client.Post(t.tag, record); err != nil {
			return fmt.Errorf("fluent: post trace line %d: %w", i+1, err)
		}
	}
	return nil
}

// Close flushes and closes the fluentd connection.
func (t *TraceShipper) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}
