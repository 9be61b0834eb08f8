// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/ytdlp"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of warnings recorded so far.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Runner ────────────────────────────────────────────────────────────

// FakeRunner implements ytdlp.Runner. Every call is recorded; Handle decides
// the outcome. With no Handle set, calls succeed with empty output.
type FakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	Handle func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error)
}

func (f *FakeRunner) Run(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	handle := f.Handle
	f.mu.Unlock()

	if handle == nil {
		return &ytdlp.Result{}, nil
	}
	return handle(ctx, args, onLine)
}

// Calls returns a copy of the recorded argument lists.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// HasArg reports whether args contains flag.
func HasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// ArgAfter returns the argument following flag, or "".
func ArgAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// OutputPath expands the job-prefixed --output template of a download call
// the way the tool would, using title and ext.
func OutputPath(args []string, title, ext string) string {
	tmpl := ArgAfter(args, "--output")
	tmpl = strings.ReplaceAll(tmpl, "%(title)s", title)
	return strings.ReplaceAll(tmpl, "%(ext)s", ext)
}

// FakeTool returns a FakeRunner.Handle that behaves like a healthy tool:
// --dump-json reports a video with the given title and duration, and a
// download reports progress and writes a small .mp4 at the output template.
func FakeTool(title string, duration float64) func(context.Context, []string, func(string)) (*ytdlp.Result, error) {
	return func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if HasArg(args, "--dump-json") {
			out, _ := json.Marshal(map[string]interface{}{
				"id":       "abc123",
				"title":    title,
				"duration": duration,
			})
			return &ytdlp.Result{Stdout: string(out) + "\n"}, nil
		}
		if onLine != nil {
			onLine("[download]  50.0% of 1.00MiB at 1.00MiB/s ETA 00:01")
			onLine("[download] 100.0% of 1.00MiB at 1.00MiB/s ETA 00:00")
		}
		if err := os.WriteFile(OutputPath(args, title, "mp4"), []byte("fake mp4 data"), 0o644); err != nil {
			return &ytdlp.Result{ExitCode: 1, Stderr: err.Error()}, nil
		}
		return &ytdlp.Result{}, nil
	}
}
