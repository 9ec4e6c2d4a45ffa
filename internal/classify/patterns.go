package classify

import (
	"regexp"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

// stockPatterns returns the seeded language patterns in match order.
// Order matters within a language: the most specific shape comes first.
func stockPatterns() []Pattern {
	return []Pattern{
		// TypeScript compiler: src/index.ts(42,10): error TS2339: message
		{
			Name:     "tsc-error",
			Matcher:  regexp.MustCompile(`^(?P<file>[^\s(]+)\((?P<line>\d+),(?P<col>\d+)\): error TS\d+: (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "typescript",
		},
		{
			Name:     "tsc-warning",
			Matcher:  regexp.MustCompile(`^(?P<file>[^\s(]+)\((?P<line>\d+),(?P<col>\d+)\): warning TS\d+: (?P<msg>.+)$`),
			Kind:     model.KindWarning,
			Language: "typescript",
		},
		// ESLint: /path/file.ts:12:5  error  message  rule-name
		{
			Name:     "eslint",
			Matcher:  regexp.MustCompile(`^\s*(?P<file>\S+\.[jt]sx?):(?P<line>\d+):(?P<col>\d+)\s+error\s+(?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "javascript",
		},
		// Node runtime errors: Error: message / TypeError: message
		{
			Name:     "node-exception",
			Matcher:  regexp.MustCompile(`^\s*(?:Type|Range|Reference|Syntax)?Error: (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "javascript",
		},
		// Go compiler/vet: file.go:12:5: message
		{
			Name:     "go-compile",
			Matcher:  regexp.MustCompile(`^(?P<file>\S+\.go):(?P<line>\d+):(?P<col>\d+): (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "go",
		},
		{
			Name:     "go-panic",
			Matcher:  regexp.MustCompile(`^panic: (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "go",
		},
		{
			Name:     "go-test-fail",
			Matcher:  regexp.MustCompile(`^--- FAIL: (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "go",
		},
		// Rust: error[E0308]: message
		{
			Name:     "cargo-error",
			Matcher:  regexp.MustCompile(`^error(?:\[E\d+\])?: (?P<msg>.+)$`),
			Kind:     model.KindError,
			Language: "rust",
		},
		{
			Name:     "cargo-warning",
			Matcher:  regexp.MustCompile(`^warning: (?P<msg>.+)$`),
			Kind:     model.KindWarning,
			Language: "rust",
		},
		// Rust location line:   --> src/main.rs:4:20
		{
			Name:     "cargo-location",
			Matcher:  regexp.MustCompile(`^\s*--> (?P<file>\S+):(?P<line>\d+):(?P<col>\d+)$`),
			Kind:     model.KindInfo,
			Language: "rust",
		},
		// Python traceback frame:   File "script.py", line 10, in main
		{
			Name:     "python-frame",
			Matcher:  regexp.MustCompile(`^\s*File "(?P<file>[^"]+)", line (?P<line>\d+)`),
			Kind:     model.KindInfo,
			Language: "python",
		},
		// Python terminal exception: ValueError: message
		{
			Name:     "python-exception",
			Matcher:  regexp.MustCompile(`^(?P<msg>[A-Z][A-Za-z]*(?:Error|Exception): .+)$`),
			Kind:     model.KindError,
			Language: "python",
		},
		// Java/Kotlin stack frame:   at com.example.Foo.bar(Foo.java:42)
		{
			Name:     "java-frame",
			Matcher:  regexp.MustCompile(`^\s*at \S+\((?P<file>[^:)]+):(?P<line>\d+)\)$`),
			Kind:     model.KindInfo,
			Language: "java",
		},
	}
}

// genericPatterns returns the catch-all tail: lines with common failure
// vocabulary classify even without a language-specific pattern.
func genericPatterns() []Pattern {
	return []Pattern{
		{
			Name:    "generic-error",
			Matcher: regexp.MustCompile(`(?i)\b(error|fail(?:ed|ure)?|exception|fatal)\b`),
			Kind:    model.KindError,
		},
		{
			Name:    "generic-warning",
			Matcher: regexp.MustCompile(`(?i)\b(warn(?:ing)?|deprecated)\b`),
			Kind:    model.KindWarning,
		},
	}
}

// timestampShapes are tried in order by ExtractTimestamp.
var timestampShapes = []struct {
	re     *regexp.Regexp
	layout string
}{
	// Full ISO-8601 with offset: 2024-05-01T12:03:04+02:00 or ...Z
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`), time.RFC3339},
	// Bracketed ISO: [2024-05-01 12:03:04]
	{regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\]`), "2006-01-02 15:04:05"},
	// Bracketed time of day: [12:03:04]
	{regexp.MustCompile(`\[(\d{2}:\d{2}:\d{2})\]`), "15:04:05"},
}

// ExtractTimestamp finds a timestamp in line using a small ordered list of
// shapes. Best effort: returns false when no shape matches. Time-of-day
// matches are anchored to today's date.
func ExtractTimestamp(line string) (time.Time, bool) {
	for _, shape := range timestampShapes {
		m := shape.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		raw := m[0]
		if len(m) > 1 {
			raw = m[1]
		}
		ts, err := time.Parse(shape.layout, raw)
		if err != nil {
			continue
		}
		if shape.layout == "15:04:05" {
			now := time.Now()
			ts = time.Date(now.Year(), now.Month(), now.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), 0, now.Location())
		}
		return ts, true
	}
	return time.Time{}, false
}
