package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/raysh454/clipper/internal/logging"
)

var ErrNotInstalled = errors.New("yt-dlp is not installed")

const (
	previewLen = 500
	waitDelay  = 5 * time.Second
)

// Result is the captured output of one tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes the extraction tool. A non-zero exit code is not an error
// at this level; callers decide what it means. onLine, when non-nil, receives
// each stdout line as it is produced.
type Runner interface {
	Run(ctx context.Context, args []string, onLine func(string)) (*Result, error)
}

// ExecRunner runs the tool as a local subprocess.
type ExecRunner struct {
	cfg    Config
	logger logging.Logger
}

func NewExecRunner(cfg Config, logger logging.Logger) *ExecRunner {
	if cfg.Binary == "" {
		cfg.Binary = DefaultConfig().Binary
	}
	return &ExecRunner{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "ytdlp"}),
	}
}

func (r *ExecRunner) Run(ctx context.Context, args []string, onLine func(string)) (*Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	full := make([]string, 0, len(r.cfg.PrefixArgs)+len(args))
	full = append(full, r.cfg.PrefixArgs...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, r.cfg.Binary, full...)
	cmd.Dir = r.cfg.WorkDir
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	cmd.WaitDelay = waitDelay

	stdout := &lineWriter{onLine: onLine}
	stderr := &lineWriter{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Info("running yt-dlp", logging.Field{Key: "binary", Value: r.cfg.Binary}, logging.Field{Key: "args", Value: strings.Join(full, " ")})

	start := time.Now()
	runErr := cmd.Run()
	stdout.flush()

	res := &Result{
		Stdout:   stdout.buf.String(),
		Stderr:   stderr.buf.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
			r.logger.Error("yt-dlp not found", logging.Field{Key: "binary", Value: r.cfg.Binary}, logging.Field{Key: "error", Value: runErr})
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, r.cfg.Binary)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.logger.Warn("yt-dlp interrupted", logging.Field{Key: "error", Value: ctxErr}, logging.Field{Key: "duration", Value: time.Since(start).String()})
			return res, fmt.Errorf("running yt-dlp: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("running yt-dlp: %w", runErr)
		}
	}

	r.logger.Info("yt-dlp finished",
		logging.Field{Key: "exit_code", Value: res.ExitCode},
		logging.Field{Key: "duration", Value: time.Since(start).String()},
		logging.Field{Key: "stdout_len", Value: len(res.Stdout)},
		logging.Field{Key: "stderr_len", Value: len(res.Stderr)},
	)
	if res.Stdout != "" {
		r.logger.Debug("yt-dlp stdout preview", logging.Field{Key: "output", Value: truncate(res.Stdout, previewLen)})
	}
	if res.Stderr != "" {
		r.logger.Debug("yt-dlp stderr preview", logging.Field{Key: "output", Value: truncate(res.Stderr, previewLen)})
	}

	return res, nil
}

// lineWriter keeps everything written to it and reports complete lines.
// Carriage returns count as line breaks since progress output uses them.
type lineWriter struct {
	buf     bytes.Buffer
	pending []byte
	onLine  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.onLine == nil {
		return len(p), nil
	}
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.pending[:i])); line != "" {
			w.onLine(line)
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.onLine == nil || len(w.pending) == 0 {
		return
	}
	if line := strings.TrimSpace(string(w.pending)); line != "" {
		w.onLine(line)
	}
	w.pending = nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
