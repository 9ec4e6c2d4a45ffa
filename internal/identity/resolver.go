// Package identity maintains the bidirectional mapping between volatile
// native tmux pane handles ("%12") and stable structured targets
// ("session:window.pane").
//
// Native handles are not preserved across every tmux operation (notably
// server restarts and some break-pane/move-pane sequences), so callers deal
// in structured targets and resolve to a native handle at the last moment.
// Resolution is fail-open: an unknown identifier resolves to itself so the
// caller still gets a best-effort tmux target instead of an error.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

// DefaultIdleTTL is how long an untouched mapping survives before the
// background sweep removes it.
const DefaultIdleTTL = time.Hour

// Mapping associates a native pane handle with its structured target.
type Mapping struct {
	Native   string
	Target   string
	Session  string
	Window   int
	Pane     int
	LastSeen time.Time
}

// Resolver is safe for concurrent use.
type Resolver struct {
	mu       sync.Mutex
	byNative map[string]*Mapping
	byTarget map[string]*Mapping

	idleTTL time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIdleTTL overrides the idle threshold used by the sweep.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.idleTTL = ttl }
}

// WithLogger sets the logger for fail-open resolution warnings.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates an empty resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		byNative: make(map[string]*Mapping),
		byTarget: make(map[string]*Mapping),
		idleTTL:  DefaultIdleTTL,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records a native handle for a (session, window, pane) triple and
// returns the structured target. Registering the same triple again under a
// different native handle replaces the mapping and evicts the previous
// native entry, so stale reverse lookups cannot survive a handle change.
func (r *Resolver) Register(native, session string, window, pane int) string {
	target := model.FormatTarget(session, window, pane)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byTarget[target]; ok && prev.Native != native {
		delete(r.byNative, prev.Native)
	}
	if prev, ok := r.byNative[native]; ok && prev.Target != target {
		delete(r.byTarget, prev.Target)
	}

	m := &Mapping{
		Native:   native,
		Target:   target,
		Session:  session,
		Window:   window,
		Pane:     pane,
		LastSeen: r.now(),
	}
	r.byNative[native] = m
	r.byTarget[target] = m
	return target
}

// ToNative resolves an identifier to a native pane handle.
//
// Native handles pass through unchanged (with a freshness touch). Known
// structured targets return their mapped handle. A structured-shaped input
// with no mapping gets a reconstruction scan over current mappings; if that
// also misses, the input is returned unchanged and a warning is logged.
func (r *Resolver) ToNative(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model.IsNativeHandle(id) {
		if m, ok := r.byNative[id]; ok {
			m.LastSeen = r.now()
		}
		return id
	}

	if m, ok := r.byTarget[id]; ok {
		m.LastSeen = r.now()
		return m.Native
	}

	if session, window, pane, err := model.ParseTarget(id); err == nil {
		for _, m := range r.byNative {
			if m.Session == session && m.Window == window && m.Pane == pane {
				m.LastSeen = r.now()
				return m.Native
			}
		}
	}

	r.log.Warn("unresolved pane identifier, passing through", "id", id)
	return id
}

// ToStructured is the mirror of ToNative: native handle in, structured
// target out where a mapping exists, identity fallback otherwise.
func (r *Resolver) ToStructured(handle string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model.IsValidTarget(handle) {
		if m, ok := r.byTarget[handle]; ok {
			m.LastSeen = r.now()
		}
		return handle
	}

	if m, ok := r.byNative[handle]; ok {
		m.LastSeen = r.now()
		return m.Target
	}

	r.log.Warn("unresolved native handle, passing through", "handle", handle)
	return handle
}

// ClearSession removes every mapping belonging to the named session.
func (r *Resolver) ClearSession(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for native, m := range r.byNative {
		if m.Session == name {
			delete(r.byNative, native)
			delete(r.byTarget, m.Target)
		}
	}
}

// Len returns the number of live mappings.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byNative)
}

// Sweep removes mappings whose last touch is older than the idle TTL and
// returns the number removed. Bounds memory growth from sessions that were
// never torn down explicitly.
func (r *Resolver) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for native, m := range r.byNative {
		if m.LastSeen.Before(cutoff) {
			delete(r.byNative, native)
			delete(r.byTarget, m.Target)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled. Interval defaults to a
// tenth of the idle TTL.
func (r *Resolver) Run(ctx context.Context) {
	interval := r.idleTTL / 10
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("swept idle pane mappings", "removed", n)
			}
		}
	}
}
