// Package tail delivers newly appended bytes from growing text files.
//
// Each watched file carries a byte offset; on every change notification the
// tailer reads exactly the range [offset, size) and advances the offset, so
// previously seen bytes are never re-read. Truncation (size < offset)
// resets the offset to zero and the next write is delivered from the new
// start of the file.
package tail

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultMaxInitialBytes is the size above which a newly watched file is
// tailed from its current end instead of replayed from the start.
const DefaultMaxInitialBytes = 1 << 20

// AppendFunc receives the newly appended text for a watched file.
type AppendFunc func(path, text string)

type watchState struct {
	offset   int64
	onAppend AppendFunc
}

// Tailer watches multiple files concurrently with independent offsets.
type Tailer struct {
	// MaxInitialBytes bounds how much pre-existing content is replayed
	// when a watch starts. Zero means DefaultMaxInitialBytes.
	MaxInitialBytes int64
	// Logger receives absorbed I/O errors. Defaults to slog.Default.
	Logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	files   map[string]*watchState
	done    chan struct{}
}

// New creates a Tailer and starts its event loop.
func New() (*Tailer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	t := &Tailer{
		watcher: w,
		files:   make(map[string]*watchState),
		done:    make(chan struct{}),
	}
	go t.loop()
	return t, nil
}

func (t *Tailer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Watch begins tailing path. If the file already exceeds MaxInitialBytes
// the offset starts at the current end of file; otherwise at zero, so
// modest pre-existing content is replayed through the callback on the
// first change notification.
func (t *Tailer) Watch(path string, onAppend AppendFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", path, err)
	}

	var offset int64
	if info, err := os.Stat(abs); err == nil {
		max := t.MaxInitialBytes
		if max <= 0 {
			max = DefaultMaxInitialBytes
		}
		if info.Size() > max {
			offset = info.Size()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.files[abs]; exists {
		return fmt.Errorf("already watching %q", abs)
	}
	if err := t.watcher.Add(abs); err != nil {
		return fmt.Errorf("watch %q: %w", abs, err)
	}
	t.files[abs] = &watchState{offset: offset, onAppend: onAppend}
	return nil
}

// Stop releases the watch for path and forgets its offset.
func (t *Tailer) Stop(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.files[abs]; ok {
		_ = t.watcher.Remove(abs)
		delete(t.files, abs)
	}
}

// StopAll releases every watch and shuts the tailer down. The tailer
// cannot be reused afterwards.
func (t *Tailer) StopAll() {
	t.mu.Lock()
	for path := range t.files {
		_ = t.watcher.Remove(path)
		delete(t.files, path)
	}
	t.mu.Unlock()

	close(t.done)
	_ = t.watcher.Close()
}

// Watching reports whether path currently has an active watch. Lets
// callers distinguish "no bytes seen yet" from "never watched".
func (t *Tailer) Watching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.files[abs]
	return ok
}

// loop runs on a single goroutine, which also guarantees in-order delivery
// per file: reads never interleave or reorder.
func (t *Tailer) loop() {
	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t.drain(ev.Name)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger().Error("file watch error", "err", err)
		}
	}
}

// drain reads and delivers the unseen byte range for path.
func (t *Tailer) drain(path string) {
	t.mu.Lock()
	state, ok := t.files[path]
	t.mu.Unlock()
	if !ok {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger().Error("stat watched file", "path", path, "err", err)
		}
		return
	}
	size := info.Size()

	switch {
	case size < state.offset:
		// Truncated. Reset silently; the next write delivers from the
		// new start of the file.
		state.offset = 0
		return
	case size == state.offset:
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.logger().Error("open watched file", "path", path, "err", err)
		return
	}
	defer f.Close()

	buf := make([]byte, size-state.offset)
	n, err := f.ReadAt(buf, state.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		t.logger().Error("read watched file", "path", path, "err", err)
		return
	}
	if n == 0 {
		return
	}

	state.offset += int64(n)
	state.onAppend(path, string(buf[:n]))
}
