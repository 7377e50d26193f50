package core

import (
	"fmt"

	"go.uber.org/zap"

	"wellness-chat/pkg"
)

// EventKind classifies a recovered failure.  None of them is fatal; each
// leaves the session degraded but usable.
type EventKind string

const (
	// HydrationFailure: the remote transcript could not be fetched at start.
	HydrationFailure EventKind = "hydration_failure"
	// PersistFailure: a message or session write was not mirrored remotely.
	PersistFailure EventKind = "persist_failure"
	// CompletionFailure: the completion call errored or timed out.
	CompletionFailure EventKind = "completion_failure"
	// TerminationFailure: the remote purge failed; the local id was still erased.
	TerminationFailure EventKind = "termination_failure"
)

// Event describes one recovered failure inside the session controller.
type Event struct {
	Kind      EventKind
	SessionID pkg.SessionID
	// MessageID is set for PersistFailure on a single message.
	MessageID string
	Err       error
}

func (e *Event) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", e.Kind, e.SessionID, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.SessionID, e.Err)
}

func (e *Event) Unwrap() error {
	return e.Err
}

// Reporter receives the controller's error events.  The surrounding
// application decides how to log or display them.  Report must not block.
type Reporter interface {
	Report(e *Event)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Report(*Event) {}

// ZapReporter logs events as structured warnings.
type ZapReporter struct {
	Log *zap.Logger
}

// NewZapReporter returns a Reporter writing to log.
func NewZapReporter(log *zap.Logger) *ZapReporter {
	return &ZapReporter{Log: log}
}

func (r *ZapReporter) Report(e *Event) {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("session_id", string(e.SessionID)),
		zap.Error(e.Err),
	}
	if e.MessageID != "" {
		fields = append(fields, zap.String("message_id", e.MessageID))
	}
	r.Log.Warn("chat session degraded", fields...)
}
