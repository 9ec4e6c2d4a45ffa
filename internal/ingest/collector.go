// Package ingest accepts externally produced diagnostics over a unix
// datagram socket.
//
// Build scripts and editor plugins push JSON payloads matching
// model.Diagnostic; valid payloads enter the coordinator as if they had
// been classified locally. Malformed, oversized, or unaddressed payloads
// are dropped silently so a buggy producer cannot wedge the pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/stream"
)

const defaultMaxPayloadBytes = 8 * 1024

type Collector struct {
	coord *stream.Coordinator
	path  string

	MaxPayloadBytes int

	mu     sync.Mutex
	conn   *net.UnixConn
	closed bool
}

func NewCollector(coord *stream.Coordinator, socketPath string) *Collector {
	return &Collector{
		coord:           coord,
		path:            socketPath,
		MaxPayloadBytes: defaultMaxPayloadBytes,
	}
}

func (c *Collector) SocketPath() string {
	return c.path
}

// DefaultSocketPath returns the per-user ingest socket location.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "muxpilot", "ingest.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("muxpilot-%d", os.Getuid()), "ingest.sock")
}

func (c *Collector) Start(ctx context.Context) error {
	if c.coord == nil {
		return fmt.Errorf("coordinator is required")
	}
	if c.path == "" {
		return fmt.Errorf("socket path is required")
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", c.path)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("listen unixgram: %w", err)
	}
	if err := os.Chmod(c.path, 0o600); err != nil {
		_ = conn.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.close()
	}()

	go c.readLoop()

	return nil
}

func (c *Collector) readLoop() {
	buf := make([]byte, c.MaxPayloadBytes)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if c.isClosed() {
				return
			}
			continue
		}

		if n <= 0 || n >= c.MaxPayloadBytes {
			continue
		}

		var d model.Diagnostic
		if err := json.Unmarshal(buf[:n], &d); err != nil {
			continue
		}
		if err := validate(d); err != nil {
			continue
		}
		c.coord.Ingest(d)
	}
}

func validate(d model.Diagnostic) error {
	if !model.IsValidTarget(d.Target) {
		return fmt.Errorf("invalid target %q", d.Target)
	}
	if strings.TrimSpace(d.Message) == "" {
		return fmt.Errorf("message is required")
	}
	switch d.Kind {
	case model.KindError, model.KindWarning, model.KindInfo:
	default:
		return fmt.Errorf("invalid kind %q", d.Kind)
	}
	return nil
}

func (c *Collector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Collector) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
