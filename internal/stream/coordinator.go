// Package stream coordinates per-target diagnostic monitoring: tailing a
// target's log file, optionally running a build-watch subprocess, feeding
// both through the classification engine, keeping a bounded per-target
// history and answering aggregation queries.
//
// Failure semantics follow the rest of the pipeline: a subprocess spawn
// failure degrades the target to file-tail classification, a missing log
// file yields empty results, and no single bad line or dead subprocess
// takes down monitoring of other targets.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/classify"
	"github.com/rixmerz/muxpilot/internal/model"
	mpotel "github.com/rixmerz/muxpilot/internal/otel"
	"github.com/rixmerz/muxpilot/internal/safety"
	"github.com/rixmerz/muxpilot/internal/tail"
)

type watchedTarget struct {
	logPath string
	watcher *buildWatcher // nil when no build command was given or spawn failed
}

// Coordinator owns the per-target watch lifecycle. Safe for concurrent use.
type Coordinator struct {
	engine    *classify.Engine
	tailer    *tail.Tailer
	bus       *bus.Bus
	validator *safety.Validator
	history   *history
	log       *slog.Logger
	metrics   *mpotel.Metrics
	now       func() time.Time

	mu      sync.Mutex
	targets map[string]*watchedTarget
	byPath  map[string]string // log path -> target id
}

// Config configures a Coordinator.
type Config struct {
	// Engine is the classification engine. Required.
	Engine *classify.Engine
	// Tailer delivers appended log bytes. Required.
	Tailer *tail.Tailer
	// Bus receives every stored diagnostic plus clear events. Required.
	Bus *bus.Bus
	// Validator pre-flights build commands before they are spawned.
	// Optional; a zero validator is used when nil.
	Validator *safety.Validator
	// HistoryCapacity bounds the per-target history. Zero means
	// DefaultHistoryCapacity.
	HistoryCapacity int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Metrics are the OTEL metric counters; nil-safe.
	Metrics *mpotel.Metrics
}

// NewCoordinator creates a coordinator from cfg.
func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = &safety.Validator{Logger: log}
	}
	return &Coordinator{
		engine:    cfg.Engine,
		tailer:    cfg.Tailer,
		bus:       cfg.Bus,
		validator: validator,
		history:   newHistory(cfg.HistoryCapacity),
		log:       log,
		metrics:   cfg.Metrics,
		now:       time.Now,
		targets:   make(map[string]*watchedTarget),
		byPath:    make(map[string]string),
	}
}

// WatchTarget starts monitoring a target. The log file at logPath is
// tailed and classified. When buildCmd names a known build tool, it is
// additionally spawned as a watch subprocess whose stdout and stderr are
// classified with the detected language preferred. A spawn failure is
// logged and the target keeps file-tail classification only.
func (c *Coordinator) WatchTarget(ctx context.Context, targetID, logPath, buildCmd string) error {
	c.mu.Lock()
	if _, exists := c.targets[targetID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("target %q already watched", targetID)
	}
	c.targets[targetID] = &watchedTarget{logPath: logPath}
	if logPath != "" {
		c.byPath[logPath] = targetID
	}
	c.mu.Unlock()

	if logPath != "" {
		if err := c.tailer.Watch(logPath, c.onAppend); err != nil {
			// A missing or unwatchable log file is partial degradation:
			// the target still exists and may get subprocess diagnostics.
			c.log.Warn("log tail unavailable", "target", targetID, "path", logPath, "err", err)
		}
	}

	if language := DetectLanguage(buildCmd); language != "" {
		c.spawnWatcher(ctx, targetID, buildCmd, language)
	} else if buildCmd != "" {
		c.log.Warn("no build tool recognized in command, skipping subprocess",
			"target", targetID, "command", buildCmd)
	}
	return nil
}

func (c *Coordinator) spawnWatcher(ctx context.Context, targetID, buildCmd, language string) {
	fields := strings.Fields(buildCmd)
	if len(fields) == 0 {
		return
	}
	if err := c.validator.Validate(fields[0], fields[1:]); err != nil {
		c.log.Warn("build command rejected", "target", targetID, "err", err)
		return
	}

	emit := func(line, lang string) {
		c.classifyLine(targetID, line, lang)
	}
	onExit := func(err error) {
		c.log.Error("build watcher exited", "target", targetID, "command", buildCmd, "err", err)
		c.metrics.RecordWatcherCrash(context.Background())
		c.store(crashDiagnostic(targetID, buildCmd, err))
		c.mu.Lock()
		if wt, ok := c.targets[targetID]; ok {
			wt.watcher = nil
		}
		c.mu.Unlock()
	}

	w, err := startBuildWatcher(ctx, targetID, buildCmd, language, emit, onExit, c.log)
	if err != nil {
		c.log.Error("build watcher spawn failed, continuing with file tail only",
			"target", targetID, "command", buildCmd, "err", err)
		return
	}
	c.metrics.RecordWatcherSpawn(ctx)
	c.mu.Lock()
	if wt, ok := c.targets[targetID]; ok {
		wt.watcher = w
	} else {
		// Target was stopped while we were spawning.
		w.stop()
	}
	c.mu.Unlock()
}

// StopTarget tears down a target's tail and subprocess. Best-effort
// immediate: the subprocess is killed, not drained.
func (c *Coordinator) StopTarget(targetID string) {
	c.mu.Lock()
	wt, ok := c.targets[targetID]
	if ok {
		delete(c.targets, targetID)
		if wt.logPath != "" {
			delete(c.byPath, wt.logPath)
		}
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if wt.logPath != "" {
		c.tailer.Stop(wt.logPath)
	}
	if wt.watcher != nil {
		wt.watcher.stop()
	}
}

// StopAll tears down every target.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.targets))
	for id := range c.targets {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.StopTarget(id)
	}
}

// Watching reports whether targetID has an active watch. This is how
// callers distinguish "no errors seen" from "watch never started".
func (c *Coordinator) Watching(targetID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.targets[targetID]
	return ok
}

// Ingest stores an externally produced diagnostic (e.g., pushed over the
// ingest socket) as if it had been classified locally.
func (c *Coordinator) Ingest(d model.Diagnostic) {
	if d.ID == "" {
		d.ID = model.NewDiagnosticID()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = c.now().UTC()
	}
	c.store(d)
}

// ClassifyText splits text into lines and classifies each against the
// engine for the given target. Used by the tail path and by one-shot
// scans of existing files.
func (c *Coordinator) ClassifyText(targetID, text, preferLanguage string) {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.classifyLine(targetID, line, preferLanguage)
	}
}

func (c *Coordinator) classifyLine(targetID, line, preferLanguage string) {
	d := c.engine.Classify(line, targetID, preferLanguage)
	if d == nil {
		return
	}
	c.store(*d)
}

func (c *Coordinator) store(d model.Diagnostic) {
	c.history.append(d)
	c.metrics.RecordClassified(context.Background(), string(d.Kind), d.Language)
	c.bus.PublishDiagnostic(d)
}

// onAppend receives newly appended log bytes from the tailer.
func (c *Coordinator) onAppend(path, text string) {
	c.mu.Lock()
	targetID, ok := c.byPath[path]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.metrics.RecordTail(context.Background(), int64(len(text)), int64(strings.Count(text, "\n")+1))
	c.ClassifyText(targetID, text, "")
}

// Summary counts diagnostics for one target ("" for global) within w.
func (c *Coordinator) Summary(target string, w Window) Counts {
	return c.history.summary(target, w, c.now())
}

// SummaryByTarget returns per-target counts within w.
func (c *Coordinator) SummaryByTarget(w Window) map[string]Counts {
	return c.history.byTarget(w, c.now())
}

// TopFiles returns the n files with the most error diagnostics within w.
func (c *Coordinator) TopFiles(n int, w Window) []NamedCount {
	return c.history.top(n, w, c.now(), func(d model.Diagnostic) string { return d.File })
}

// TopKinds returns the n matching patterns with the most error
// diagnostics within w, a proxy for "kinds of error" that groups
// repeated failures regardless of message wording.
func (c *Coordinator) TopKinds(n int, w Window) []NamedCount {
	return c.history.top(n, w, c.now(), func(d model.Diagnostic) string { return d.Pattern })
}

// Recent returns up to n most recent diagnostics for target, oldest
// first. Unknown targets yield an empty slice, never an error.
func (c *Coordinator) Recent(target string, n int) []model.Diagnostic {
	return c.history.recent(target, n)
}

// ClearHistory drops stored diagnostics for target, or for every target
// when target is empty, emitting a clear event per affected target.
func (c *Coordinator) ClearHistory(target string) {
	if target != "" {
		if c.history.clear(target) {
			c.bus.PublishClear(bus.ClearEvent{Target: target})
		}
		return
	}
	for _, cleared := range c.history.clearAll() {
		c.bus.PublishClear(bus.ClearEvent{Target: cleared})
	}
}
