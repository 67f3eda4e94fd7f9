package domain

import (
	"context"
	"time"
)

// AccessEvent is one authorization decision emitted to the audit sink.
type AccessEvent struct {
	ID        string
	Timestamp time.Time
	UserEmail string
	UserID    string
	Resource  string
	Action    string
	Granted   bool
	Groups    []string
}

// AuditSink accepts access events. Implementations decide storage; the core
// emits and moves on, so sinks should not block on slow backends.
type AuditSink interface {
	Record(ctx context.Context, event AccessEvent)
}
