// Package safety validates and escapes command strings before they are
// handed to tmux send-keys or the OS shell.
//
// Two distinct transforms live here and must not be confused:
//
//   - EscapeForSend produces a string safe to pass as the single send-keys
//     argument for an interactive shell. It neutralizes every shell
//     metacharacter so the target shell runs exactly one command.
//   - FormatForDisplay quotes arguments for human-readable audit logs. It
//     is a weaker transform and is never used for execution.
package safety

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ValidationError reports a command rejected before any side effect.
type ValidationError struct {
	Command string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reason)
}

// escapePasses is the ordered escaping table for EscapeForSend. The order
// is load-bearing: backslash must run first so later passes do not
// re-escape the backslashes they introduce, and the single-quote pass uses
// the close/insert/reopen idiom rather than a backslash.
var escapePasses = []struct {
	old, new string
}{
	{`\`, `\\`},
	{`"`, `\"`},
	{`'`, `'\''`},
	{`$`, `\$`},
	{"`", "\\`"},
	{`;`, `\;`},
	{`|`, `\|`},
	{`&`, `\&`},
}

// EscapeForSend escapes a user-supplied command string for delivery as a
// single tmux send-keys argument. See escapePasses for the fixed order.
func EscapeForSend(command string) string {
	for _, p := range escapePasses {
		command = strings.ReplaceAll(command, p.old, p.new)
	}
	return command
}

// denied are base commands rejected by Validate unless AllowDangerous is
// set: destructive filesystem, disk, process and privilege operations.
var denied = map[string]string{
	"rm":       "recursive/forced file removal",
	"rmdir":    "directory removal",
	"dd":       "raw disk writes",
	"mkfs":     "filesystem creation",
	"fdisk":    "partition table editing",
	"parted":   "partition table editing",
	"shred":    "secure file destruction",
	"shutdown": "system shutdown",
	"reboot":   "system reboot",
	"halt":     "system halt",
	"poweroff": "system power-off",
	"kill":     "process termination",
	"killall":  "mass process termination",
	"pkill":    "pattern process termination",
	"sudo":     "privilege escalation",
	"su":       "privilege escalation",
	"chown":    "ownership change",
	"chmod":    "permission change",
	"mv":       "file relocation/overwrite",
}

// allowed are commands accepted without a warning log. Everything not in
// either table is permitted but logged at warning level.
var allowed = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "grep": true,
	"find": true, "echo": true, "pwd": true, "cd": true, "which": true,
	"env": true, "date": true, "whoami": true, "ps": true, "lsof": true,
	"git": true, "npm": true, "npx": true, "pnpm": true, "yarn": true,
	"node": true, "go": true, "cargo": true, "rustc": true, "python": true,
	"python3": true, "pip": true, "pytest": true, "tsc": true, "make": true,
	"mvn": true, "gradle": true, "docker": true, "kubectl": true,
	"curl": true, "wget": true, "tmux": true,
}

// injectionChecks are heuristics run over the joined argument string.
// A match rejects the command regardless of the dangerous override: these
// shapes smuggle a denylisted verb past base-command validation.
var injectionChecks = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`[;|]\s*(rm|dd|mkfs|shutdown|reboot|kill|sudo)\b`), "command chaining into a destructive command"},
	{regexp.MustCompile(`&&\s*(rm|dd|mkfs|shutdown|reboot|kill|sudo)\b`), "conditional chaining into a destructive command"},
	{regexp.MustCompile(`\$\([^)]*\b(rm|dd|mkfs|shutdown|reboot|kill|sudo)\b`), "command substitution wrapping a destructive command"},
	{regexp.MustCompile("`[^`]*\\b(rm|dd|mkfs|shutdown|reboot|kill|sudo)\\b"), "backtick substitution wrapping a destructive command"},
}

// Validator checks commands against the denylist and injection heuristics.
// The zero value is usable and rejects dangerous commands.
type Validator struct {
	// AllowDangerous permits denylisted base commands. Injection
	// heuristics still apply.
	AllowDangerous bool
	// Logger receives warnings for unrecognized commands. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// Validate rejects execution of dangerous commands. A nil return means the
// command may be executed.
func (v *Validator) Validate(command string, args []string) error {
	base := baseCommand(command)

	if reason, ok := denied[base]; ok && !v.AllowDangerous {
		return &ValidationError{Command: command, Reason: reason}
	}

	joined := strings.Join(args, " ")
	for _, check := range injectionChecks {
		if check.re.MatchString(joined) {
			return &ValidationError{Command: command, Reason: check.reason}
		}
	}

	if _, dangerous := denied[base]; !dangerous && !allowed[base] {
		v.logger().Warn("command not on allowlist, permitting", "command", base)
	}
	return nil
}

// Check is the non-erroring preview of Validate: ok plus a human-readable
// reason when not ok.
func (v *Validator) Check(command string, args []string) (bool, string) {
	if err := v.Validate(command, args); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return false, verr.Reason
		}
		return false, err.Error()
	}
	return true, ""
}

// baseCommand strips any path prefix from the command name.
func baseCommand(command string) string {
	command = strings.TrimSpace(command)
	if idx := strings.LastIndexByte(command, '/'); idx >= 0 {
		command = command[idx+1:]
	}
	return command
}

// displayMeta marks arguments that need quoting in audit logs.
var displayMeta = regexp.MustCompile("[ \t'\"\\\\$`;|&<>(){}*?#~]")

// FormatForDisplay renders a command line for audit logs, quoting only the
// arguments that contain shell-meaningful characters. Not safe for
// execution; use EscapeForSend for anything sent to a shell.
func FormatForDisplay(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, arg := range args {
		if arg == "" || displayMeta.MatchString(arg) {
			parts = append(parts, "'"+strings.ReplaceAll(arg, "'", `'\''`)+"'")
			continue
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
