// Package trigger debounces diagnostic activity into at-most-once external
// triggers.
//
// Each (category, target) key runs an idle → firing → cooling-down → idle
// cycle: the first qualifying event fires the trigger and starts the
// category's cooldown window; events arriving during the window are
// silently absorbed: no re-fire, no queueing. State lives only in memory
// and does not survive a restart.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/model"
	mpotel "github.com/rixmerz/muxpilot/internal/otel"
	"github.com/rixmerz/muxpilot/internal/stream"
)

// Trigger categories.
const (
	CategorySingleError = "single_error"
	CategoryMultiError  = "multi_error"
	CategoryCrash       = "crash"
	CategoryDocLookup   = "doc_lookup"
)

// Config tunes the orchestrator. Zero values take the defaults below.
type Config struct {
	// Cooldowns per category. Missing categories use DefaultCooldowns.
	Cooldowns map[string]time.Duration
	// MultiErrorThreshold is how many errors within MultiErrorWindow
	// qualify as a multi-error burst.
	MultiErrorThreshold int
	// MultiErrorWindow is the burst accumulation window.
	MultiErrorWindow time.Duration
	// NoveltyPrefixLen is how many leading message bytes feed the novelty
	// dedup key (kind + prefix). Zero disables truncation so the whole
	// message participates. This is a tunable heuristic, not a
	// correctness-critical dedup key.
	NoveltyPrefixLen int
	// PayloadDepth is how many recent diagnostics accompany a fired
	// trigger.
	PayloadDepth int
	// Metrics are the OTEL metric counters; nil-safe.
	Metrics *mpotel.Metrics
}

// DefaultCooldowns are the per-category debounce windows.
var DefaultCooldowns = map[string]time.Duration{
	CategorySingleError: 2 * time.Minute,
	CategoryMultiError:  5 * time.Minute,
	CategoryCrash:       10 * time.Minute,
	CategoryDocLookup:   30 * time.Minute,
}

const (
	defaultMultiErrorThreshold = 5
	defaultMultiErrorWindow    = time.Minute
	defaultNoveltyPrefixLen    = 50
	defaultPayloadDepth        = 10
)

type key struct {
	category string
	target   string
}

// Orchestrator consumes diagnostics from the bus and fires debounced
// triggers back onto it.
type Orchestrator struct {
	coord *stream.Coordinator
	bus   *bus.Bus
	cfg   Config
	log   *slog.Logger
	now   func() time.Time

	mu          sync.Mutex
	lastFired   map[key]time.Time
	seenNovelty map[string]time.Time // novelty key -> first seen
	errorTimes  map[string][]time.Time
}

// New creates an orchestrator. The coordinator supplies the recent
// diagnostics attached to each fired trigger.
func New(coord *stream.Coordinator, b *bus.Bus, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Cooldowns == nil {
		cfg.Cooldowns = DefaultCooldowns
	}
	if cfg.MultiErrorThreshold <= 0 {
		cfg.MultiErrorThreshold = defaultMultiErrorThreshold
	}
	if cfg.MultiErrorWindow <= 0 {
		cfg.MultiErrorWindow = defaultMultiErrorWindow
	}
	if cfg.NoveltyPrefixLen < 0 {
		cfg.NoveltyPrefixLen = defaultNoveltyPrefixLen
	}
	if cfg.PayloadDepth <= 0 {
		cfg.PayloadDepth = defaultPayloadDepth
	}
	return &Orchestrator{
		coord:       coord,
		bus:         b,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		lastFired:   make(map[key]time.Time),
		seenNovelty: make(map[string]time.Time),
		errorTimes:  make(map[string][]time.Time),
	}
}

// Run consumes the bus's diagnostic stream until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	diags := o.bus.SubscribeDiagnostics()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-diags:
			if !ok {
				return
			}
			o.Observe(d)
		}
	}
}

// Observe evaluates one diagnostic against every category.
func (o *Orchestrator) Observe(d model.Diagnostic) {
	if d.Kind != model.KindError {
		return
	}

	if d.Pattern == stream.CrashPattern {
		o.fire(CategoryCrash, d.Target)
		return
	}

	if o.isNovel(d) {
		o.fire(CategorySingleError, d.Target)
	}

	if o.recordErrorAndCheckBurst(d.Target) {
		o.fire(CategoryMultiError, d.Target)
	}
}

// RequestDocLookup fires the low-frequency documentation-lookup trigger
// for a target, subject to its own cooldown.
func (o *Orchestrator) RequestDocLookup(target string) bool {
	return o.fire(CategoryDocLookup, target)
}

// fire transitions a key idle → firing if it is not cooling down, emits
// the trigger and starts the cooldown. Returns whether it fired.
func (o *Orchestrator) fire(category, target string) bool {
	now := o.now()
	k := key{category: category, target: target}

	o.mu.Lock()
	cooldown, ok := o.cfg.Cooldowns[category]
	if !ok {
		cooldown = DefaultCooldowns[category]
	}
	if last, fired := o.lastFired[k]; fired && now.Sub(last) < cooldown {
		o.mu.Unlock()
		o.cfg.Metrics.RecordTriggerSuppressed(context.Background(), category)
		return false // absorbed: at-most-one per window
	}
	o.lastFired[k] = now
	o.mu.Unlock()

	ev := model.TriggerEvent{
		Category: category,
		Target:   target,
		FiredAt:  now.UTC(),
	}
	if o.coord != nil {
		ev.Diagnostics = o.coord.Recent(target, o.cfg.PayloadDepth)
	}
	o.log.Info("trigger fired", "category", category, "target", target)
	o.cfg.Metrics.RecordTriggerFired(context.Background(), category)
	o.bus.PublishTrigger(ev)
	return true
}

// isNovel reports whether this error's dedup key has not been seen within
// the single-error cooldown. Key = kind + message prefix; see
// Config.NoveltyPrefixLen for the tradeoffs of prefix keying.
func (o *Orchestrator) isNovel(d model.Diagnostic) bool {
	msg := d.Message
	if n := o.cfg.NoveltyPrefixLen; n > 0 && len(msg) > n {
		msg = msg[:n]
	}
	nk := string(d.Kind) + "|" + msg

	now := o.now()
	ttl, ok := o.cfg.Cooldowns[CategorySingleError]
	if !ok {
		ttl = DefaultCooldowns[CategorySingleError]
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if first, seen := o.seenNovelty[nk]; seen && now.Sub(first) < ttl {
		return false
	}
	o.seenNovelty[nk] = now
	return true
}

// recordErrorAndCheckBurst tracks per-target error timestamps and reports
// whether the count within the burst window crossed the threshold.
func (o *Orchestrator) recordErrorAndCheckBurst(target string) bool {
	now := o.now()
	cutoff := now.Add(-o.cfg.MultiErrorWindow)

	o.mu.Lock()
	defer o.mu.Unlock()
	times := o.errorTimes[target]
	kept := times[:0]
	for _, ts := range times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	o.errorTimes[target] = kept
	return len(kept) >= o.cfg.MultiErrorThreshold
}

// ClearHistory resets every key to idle and forgets novelty and burst
// state. Intended for tests and administrative reset.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastFired = make(map[key]time.Time)
	o.seenNovelty = make(map[string]time.Time)
	o.errorTimes = make(map[string][]time.Time)
}
