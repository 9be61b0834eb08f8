package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/raysh454/clipper/internal/cookies"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/registry"
	"github.com/raysh454/clipper/internal/ytdlp"
)

// Options adjust how an Application is assembled.
type Options struct {
	// Runner replaces the subprocess runner. Tests inject a fake here.
	Runner ytdlp.Runner

	// WatchCookies follows external edits of the cookie file.
	WatchCookies bool
}

// Application is the runtime state container shared by the HTTP server and
// the CLI. It owns the ledger database, the cookie store and the
// orchestrator built on top of them.
type Application struct {
	Config *Config
	Logger logging.Logger

	Orch     *Orchestrator
	Registry *registry.Registry
	Cookies  *cookies.Store

	db      *sql.DB
	watcher *cookies.Watcher

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewApplication resolves cfg, opens the ledger and wires the components.
func NewApplication(cfg *Config, logger logging.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	db, err := registry.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	reg, err := registry.NewRegistry(db, logger.With(logging.Field{Key: "component", Value: "registry"}))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	store := cookies.NewStore(cfg.CookiesFile, logger.With(logging.Field{Key: "component", Value: "cookies"}))

	a := &Application{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Cookies:  store,
		db:       db,
	}

	if opts.WatchCookies {
		w, err := cookies.NewWatcher(store, logger.With(logging.Field{Key: "component", Value: "cookies-watcher"}))
		if err != nil {
			logger.Warn("cookie file watcher disabled", logging.Field{Key: "error", Value: err})
		} else {
			a.watcher = w
		}
	}

	runner := opts.Runner
	if runner == nil {
		runner = ytdlp.NewExecRunner(cfg.YtDlpCfg, logger.With(logging.Field{Key: "component", Value: "ytdlp"}))
	}
	client := ytdlp.NewClient(runner, cfg.YtDlpCfg, logger)
	a.Orch = NewOrchestrator(cfg, client, store, reg, logger)

	return a, nil
}

// Start launches background maintenance. It returns immediately.
func (a *Application) Start(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	ctx, a.cancel = context.WithCancel(ctx)

	a.Logger.Info("application starting",
		logging.Field{Key: "storage_root", Value: a.Config.StorageRoot},
		logging.Field{Key: "download_dir", Value: a.Config.DownloadDir},
		logging.Field{Key: "max_concurrent_jobs", Value: a.Config.MaxConcurrentJobs})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Orch.RunJanitor(ctx)
	}()
	return nil
}

// Shutdown stops background work and releases the database and watcher.
// It is safe to call more than once.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	var errs []error
	a.stopOnce.Do(func() {
		a.Logger.Info("application shutdown initiated")
		if a.cancel != nil {
			a.cancel()
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for background work: %w", ctx.Err()))
		}

		if a.watcher != nil {
			if err := a.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
