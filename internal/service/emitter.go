package service

import "context"

// ─────────────────────────────────────────────────────────────
// EventEmitter
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for pushing change notifications to whatever
// hosts the engine (an editor frontend, the outline watcher, the mirror).
// Services receive this interface instead of a concrete transport, which
// makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// emitBlocksChanged is the shared change notification every mutating
// service sends once its transaction has committed.
func emitBlocksChanged(ctx context.Context, e EventEmitter, projectID string) {
	if e == nil {
		return
	}
	e.Emit(ctx, "blocks:changed", map[string]string{"projectId": projectID})
}
