package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "muxpilot"

// Metrics holds all OTEL metric instruments for muxpilot.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Tailing counters
	TailBytes metric.Int64Counter
	TailLines metric.Int64Counter

	// Classification counters (partitioned by kind + language via attributes)
	Classified metric.Int64Counter

	// Trigger counters (partitioned by category)
	TriggersFired      metric.Int64Counter
	TriggersSuppressed metric.Int64Counter

	// Build watcher counters
	WatcherSpawns  metric.Int64Counter
	WatcherCrashes metric.Int64Counter

	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TailBytes, err = meter.Int64Counter("tail.bytes",
		metric.WithDescription("Total bytes read from tailed log files"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.TailLines, err = meter.Int64Counter("tail.lines",
		metric.WithDescription("Total lines read from tailed log files"),
		metric.WithUnit("{line}"))
	if err != nil {
		return nil, err
	}

	m.Classified, err = meter.Int64Counter("classify.diagnostics",
		metric.WithDescription("Diagnostics produced by the classification engine, partitioned by kind and language"))
	if err != nil {
		return nil, err
	}

	m.TriggersFired, err = meter.Int64Counter("triggers.fired",
		metric.WithDescription("Trigger events fired, partitioned by category"))
	if err != nil {
		return nil, err
	}

	m.TriggersSuppressed, err = meter.Int64Counter("triggers.suppressed",
		metric.WithDescription("Trigger events suppressed by an active cooldown, partitioned by category"))
	if err != nil {
		return nil, err
	}

	m.WatcherSpawns, err = meter.Int64Counter("watcher.spawns",
		metric.WithDescription("Build watcher subprocesses spawned"))
	if err != nil {
		return nil, err
	}

	m.WatcherCrashes, err = meter.Int64Counter("watcher.crashes",
		metric.WithDescription("Build watcher subprocesses that exited unexpectedly"))
	if err != nil {
		return nil, err
	}

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTail records bytes and lines drained from a tailed file.
func (m *Metrics) RecordTail(ctx context.Context, bytes, lines int64) {
	if m == nil {
		return
	}
	m.TailBytes.Add(ctx, bytes)
	m.TailLines.Add(ctx, lines)
}

// RecordClassified records a produced diagnostic.
func (m *Metrics) RecordClassified(ctx context.Context, kind, language string) {
	if m == nil {
		return
	}
	m.Classified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("diagnostic.kind", kind),
		attribute.String("diagnostic.language", language),
	))
}

// RecordTriggerFired records a fired trigger event.
func (m *Metrics) RecordTriggerFired(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.TriggersFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger.category", category),
	))
}

// RecordTriggerSuppressed records a trigger suppressed by cooldown.
func (m *Metrics) RecordTriggerSuppressed(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.TriggersSuppressed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger.category", category),
	))
}

// RecordWatcherSpawn records a build watcher subprocess launch.
func (m *Metrics) RecordWatcherSpawn(ctx context.Context) {
	if m == nil {
		return
	}
	m.WatcherSpawns.Add(ctx, 1)
}

// RecordWatcherCrash records an unexpected build watcher exit.
func (m *Metrics) RecordWatcherCrash(ctx context.Context) {
	if m == nil {
		return
	}
	m.WatcherCrashes.Add(ctx, 1)
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}
