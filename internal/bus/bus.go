// Package bus is the typed publish/subscribe fan-out between the stream
// coordinator, the trigger orchestrator and external consumers.
//
// Topics are fixed and payloads are typed per topic: diagnostics flow on
// the error/warning topics, history resets on clear, and fired triggers on
// their own channel. Subscribers receive on buffered channels; a slow
// subscriber drops messages rather than stalling the producers.
package bus

import (
	"sync"

	"github.com/rixmerz/muxpilot/internal/model"
)

const subscriberBuffer = 64

// ClearEvent announces that a target's diagnostic history was reset.
type ClearEvent struct {
	Target string `json:"target"`
}

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu          sync.Mutex
	diagnostics []chan model.Diagnostic
	clears      []chan ClearEvent
	triggers    []chan model.TriggerEvent
	closed      bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// SubscribeDiagnostics returns a channel carrying every published
// diagnostic (both error and warning kinds).
func (b *Bus) SubscribeDiagnostics() <-chan model.Diagnostic {
	ch := make(chan model.Diagnostic, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.diagnostics = append(b.diagnostics, ch)
	return ch
}

// SubscribeClears returns a channel carrying history-reset events.
func (b *Bus) SubscribeClears() <-chan ClearEvent {
	ch := make(chan ClearEvent, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clears = append(b.clears, ch)
	return ch
}

// SubscribeTriggers returns a channel carrying fired triggers.
func (b *Bus) SubscribeTriggers() <-chan model.TriggerEvent {
	ch := make(chan model.TriggerEvent, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.triggers = append(b.triggers, ch)
	return ch
}

// PublishDiagnostic delivers d to all diagnostic subscribers.
func (b *Bus) PublishDiagnostic(d model.Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.diagnostics {
		select {
		case ch <- d:
		default: // drop rather than stall the tail loop
		}
	}
}

// PublishClear delivers a history-reset event to subscribers.
func (b *Bus) PublishClear(ev ClearEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.clears {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishTrigger delivers a fired trigger to subscribers.
func (b *Bus) PublishTrigger(ev model.TriggerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.triggers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.diagnostics {
		close(ch)
	}
	for _, ch := range b.clears {
		close(ch)
	}
	for _, ch := range b.triggers {
		close(ch)
	}
	b.diagnostics, b.clears, b.triggers = nil, nil, nil
}
