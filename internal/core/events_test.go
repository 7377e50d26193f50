package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvent_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("db down")
	e := &Event{Kind: PersistFailure, SessionID: "s1", MessageID: "m1", Err: cause}
	assert.Equal(t, "persist_failure [s1/m1]: db down", e.Error())
	assert.ErrorIs(t, e, cause)

	e = &Event{Kind: HydrationFailure, SessionID: "s1", Err: cause}
	assert.Equal(t, "hydration_failure [s1]: db down", e.Error())
}

func TestZapReporter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewZapReporter(zap.New(core))

	r.Report(&Event{Kind: PersistFailure, SessionID: "s1", MessageID: "m1", Err: errors.New("boom")})
	r.Report(&Event{Kind: CompletionFailure, SessionID: "s1", Err: errors.New("timeout")})

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "persist_failure", first["kind"])
	assert.Equal(t, "s1", first["session_id"])
	assert.Equal(t, "m1", first["message_id"])
	assert.Equal(t, "boom", first["error"])
	assert.NotContains(t, entries[1].ContextMap(), "message_id")
}
