// Package cli implements the clipper command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/clipper/internal/app"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/ytdlp"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// Options carries the dependencies that tests replace.
type Options struct {
	// Runner replaces the yt-dlp subprocess runner.
	Runner ytdlp.Runner
	// Logger replaces the zap logger built from configuration.
	Logger logging.Logger
	// Stdin is read by "cookies set --file -". Defaults to os.Stdin.
	Stdin io.Reader
}

type globalFlags struct {
	envFile     string
	storageRoot string
	logLevel    string
	logFormat   string
}

// env resolves configuration and shared components for subcommands.
type env struct {
	opts  Options
	flags globalFlags
}

// NewRootCommand builds the full command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "clipper",
		Short: "Cut sections out of online videos",
		Long: `Clipper downloads a time window of an online video as MP4 using yt-dlp.

Run it as an HTTP service:
  clipper serve --addr :3001

or clip directly from the terminal:
  clipper clip "https://www.youtube.com/watch?v=dQw4w9WgXcQ" --start 0:42 --end 1:30 --out rick.mp4`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.envFile, "env-file", "", "load environment variables from this file (default ./.env when present)")
	pf.StringVar(&e.flags.storageRoot, "storage-root", "", "directory for the job ledger and work files (overrides CLIPPER_STORAGE_ROOT)")
	pf.StringVar(&e.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&e.flags.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(
		newServeCommand(e),
		newClipCommand(e),
		newCookiesCommand(e),
		newJobsCommand(e),
		newVersionCommand(e),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(Options{})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (e *env) config() (*app.Config, error) {
	cfg, err := app.LoadConfig(e.flags.envFile)
	if err != nil {
		return nil, err
	}
	if e.flags.storageRoot != "" {
		cfg.StorageRoot = e.flags.storageRoot
	}
	if e.flags.logLevel != "" {
		cfg.LogCfg.Level = e.flags.logLevel
	}
	if e.flags.logFormat != "" {
		cfg.LogCfg.Format = e.flags.logFormat
	}
	return cfg, nil
}

// logger builds the process logger. Terminal commands log warnings to
// stderr so their stdout stays clean.
func (e *env) logger(cfg *app.Config, terminal bool) (logging.Logger, func(), error) {
	if e.opts.Logger != nil {
		return e.opts.Logger, func() {}, nil
	}
	lc := cfg.LogCfg
	if terminal {
		lc.Output = "stderr"
		if e.flags.logLevel == "" {
			lc.Level = "warn"
		}
		if e.flags.logFormat == "" {
			lc.Format = "console"
		}
	}
	zl, err := logging.NewZapLogger("clipper", lc)
	if err != nil {
		return nil, nil, err
	}
	return zl, func() { _ = zl.Sync() }, nil
}

// application wires an Application for a one-shot terminal command.
func (e *env) application() (*app.Application, func(), error) {
	cfg, err := e.config()
	if err != nil {
		return nil, nil, err
	}
	logger, syncLogger, err := e.logger(cfg, true)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApplication(cfg, logger, app.Options{Runner: e.opts.Runner})
	if err != nil {
		syncLogger()
		return nil, nil, err
	}
	return a, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			logger.Warn("shutting down", logging.Field{Key: "error", Value: err})
		}
		syncLogger()
	}, nil
}
