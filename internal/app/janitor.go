package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/clipper/internal/logging"
)

// SweepStale removes job files older than olderThan from the download and
// work directories. Files of jobs that are running or still being delivered
// are kept. It returns the number of removed entries.
func (o *Orchestrator) SweepStale(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error

	for _, dir := range []string{o.cfg.DownloadDir, o.cfg.WorkDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, e := range entries {
			if id := jobIDFromName(e.Name()); id != "" && o.inUse(id) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(p); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		o.logger.Info("swept stale files", logging.Field{Key: "removed", Value: removed})
	}
	return removed, errors.Join(errs...)
}

// jobIDFromName extracts the job id from "<id>_<title>.<ext>" or
// "cookies-<id>.txt". It returns "" for other names.
func jobIDFromName(name string) string {
	name = strings.TrimPrefix(name, "cookies-")
	if len(name) < 36 {
		return ""
	}
	if _, err := uuid.Parse(name[:36]); err != nil {
		return ""
	}
	return name[:36]
}

// RunJanitor sweeps stale files and prunes the ledger once immediately and
// then every JanitorInterval until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context) {
	interval := o.cfg.JanitorInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		o.janitorPass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) janitorPass(ctx context.Context) {
	if _, err := o.SweepStale(o.cfg.FileRetention); err != nil {
		o.logger.Warn("sweeping stale files", logging.Field{Key: "error", Value: err})
	}
	if o.registry == nil || o.cfg.JobRetentionTime <= 0 {
		return
	}
	if _, err := o.registry.PruneJobs(ctx, time.Now().Add(-o.cfg.JobRetentionTime)); err != nil {
		o.logger.Warn("pruning job ledger", logging.Field{Key: "error", Value: err})
	}
}
