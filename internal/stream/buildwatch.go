package stream

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

// CrashPattern marks synthetic diagnostics emitted when a build-watch
// subprocess exits unexpectedly. The trigger orchestrator keys its crash
// category off this name.
const CrashPattern = "subprocess-exit"

// languageTokens maps build-tool invocation tokens to the language whose
// patterns the classifier should prefer for that subprocess's output.
// Checked in order; the first token found in the command string wins.
var languageTokens = []struct {
	token    string
	language string
}{
	{"tsc", "typescript"},
	{"ts-node", "typescript"},
	{"cargo", "rust"},
	{"rustc", "rust"},
	{"go build", "go"},
	{"go run", "go"},
	{"go test", "go"},
	{"go vet", "go"},
	{"pytest", "python"},
	{"python", "python"},
	{"mvn", "java"},
	{"gradle", "java"},
	{"javac", "java"},
	{"npm run", "javascript"},
	{"pnpm run", "javascript"},
	{"yarn", "javascript"},
	{"node", "javascript"},
	{"eslint", "javascript"},
}

// DetectLanguage returns the language implied by a build command string,
// or "" when no known build-tool token is present.
func DetectLanguage(command string) string {
	for _, lt := range languageTokens {
		if strings.Contains(command, lt.token) {
			return lt.language
		}
	}
	return ""
}

// buildWatcher runs a build command as a long-lived subprocess and feeds
// each stdout and stderr line to the coordinator, tagged with the detected
// language so language-specific patterns are preferentially applied.
type buildWatcher struct {
	target   string
	command  string
	language string

	cancel context.CancelFunc
	done   chan struct{}
}

// startBuildWatcher spawns the subprocess. The emit callback is invoked
// once per output line; onExit fires when the process ends for any reason
// other than cancellation.
func startBuildWatcher(ctx context.Context, target, command, language string,
	emit func(line, language string), onExit func(err error), log *slog.Logger) (*buildWatcher, error) {

	ctx, cancel := context.WithCancel(ctx)
	// The command string came from the caller's own config; it runs via
	// the shell because build invocations routinely carry flags, env
	// prefixes and script names.
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	w := &buildWatcher{
		target:   target,
		command:  command,
		language: language,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	var readers sync.WaitGroup
	for _, pipe := range []struct {
		name string
		r    interface{ Read([]byte) (int, error) }
	}{{"stdout", stdout}, {"stderr", stderr}} {
		readers.Add(1)
		go func(name string, r interface{ Read([]byte) (int, error) }) {
			defer readers.Done()
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				emit(scanner.Text(), language)
			}
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				log.Error("build watcher read", "target", target, "stream", name, "err", err)
			}
		}(pipe.name, pipe.r)
	}

	go func() {
		defer close(w.done)
		readers.Wait()
		err := cmd.Wait()
		if ctx.Err() != nil {
			return // stopped deliberately
		}
		onExit(err)
	}()

	return w, nil
}

// stop kills the subprocess without waiting for graceful shutdown.
func (w *buildWatcher) stop() {
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(500 * time.Millisecond):
	}
}

// crashDiagnostic builds the synthetic diagnostic for an unexpected exit.
func crashDiagnostic(target, command string, err error) model.Diagnostic {
	msg := fmt.Sprintf("build watcher %q exited", command)
	if err != nil {
		msg = fmt.Sprintf("build watcher %q exited: %v", command, err)
	}
	return model.Diagnostic{
		ID:        model.NewDiagnosticID(),
		Target:    target,
		Message:   msg,
		Kind:      model.KindError,
		Pattern:   CrashPattern,
		Timestamp: time.Now().UTC(),
	}
}
