package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/raysh454/clipper/internal/clip"
	"github.com/raysh454/clipper/internal/cookies"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/registry"
	"github.com/raysh454/clipper/internal/ytdlp"
)

var (
	ErrInvalidJobID  = errors.New("job id must be a UUID")
	ErrJobExists     = errors.New("job id is already in use")
	ErrOutputMissing = errors.New("file downloaded but not found on disk")
)

// VideoError is a failure of the external tool. Message is safe to show to
// the user; the wrapped error carries the details.
type VideoError struct {
	Message string
	Err     error
}

func (e *VideoError) Error() string { return e.Err.Error() }
func (e *VideoError) Unwrap() error { return e.Err }

// UserMessage maps any error returned by Clip to the text shown to clients.
func UserMessage(err error) string {
	if msg := clip.UserMessage(err); msg != "" {
		return msg
	}
	var ve *VideoError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, ErrInvalidJobID) || errors.Is(err, ErrJobExists) {
		return err.Error()
	}
	return "Failed to process video."
}

// ClipResult is a finished clip on disk. The caller owns the file and must
// call Cleanup once it has been delivered.
type ClipResult struct {
	JobID    string
	Path     string
	FileName string
	Size     int64
	Title    string
	Window   clip.Window
	Cleanup  func()
}

type Orchestrator struct {
	cfg      *Config
	client   *ytdlp.Client
	cookies  *cookies.Store
	registry *registry.Registry
	logger   logging.Logger

	sem *semaphore.Weighted

	jobsMu sync.Mutex
	jobs   map[string]*Job
	// held marks finished jobs whose output is still being delivered.
	held map[string]struct{}
}

// NewOrchestrator ties together config, the tool client, the cookie store,
// the ledger and a logger. reg may be nil to run without a ledger.
func NewOrchestrator(cfg *Config, client *ytdlp.Client, store *cookies.Store, reg *registry.Registry, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	n := cfg.MaxConcurrentJobs
	if n <= 0 {
		n = 1
	}
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		cookies:  store,
		registry: reg,
		logger:   logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		sem:      semaphore.NewWeighted(int64(n)),
		jobs:     make(map[string]*Job),
		held:     make(map[string]struct{}),
	}
}

// Clip runs one request end to end: metadata lookup, window validation and
// the section download. Validation failures satisfy clip.IsValidation; tool
// failures are *VideoError.
func (o *Orchestrator) Clip(ctx context.Context, req clip.Request) (res *ClipResult, err error) {
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	} else if _, perr := uuid.Parse(jobID); perr != nil {
		return nil, ErrInvalidJobID
	}

	videoURL, err := clip.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	job := &Job{
		ID:        jobID,
		SourceURL: req.URL,
		Status:    registry.JobPending,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
		subs:      make(map[int]chan JobEvent),
	}
	if !o.addJob(job) {
		return nil, ErrJobExists
	}

	logger := o.logger.With(logging.Field{Key: "job_id", Value: jobID})
	logger.Info("clip requested", logging.Field{Key: "url", Value: req.URL})
	if err := o.recordCreate(ctx, jobID, req.URL, logger); err != nil {
		o.removeJob(jobID)
		return nil, err
	}
	defer func() { o.finish(ctx, jobID, res, err, logger) }()

	if err := o.sem.Acquire(jobCtx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free slot: %w", err)
	}
	defer o.sem.Release(1)

	o.emitJobEvent(JobEvent{JobID: jobID, Type: JobEventStatus, Status: registry.JobRunning})

	cookiesPath, dropCookies, cerr := o.cookies.Snapshot(o.cfg.WorkDir, jobID)
	if cerr != nil {
		logger.Warn("continuing without cookies", logging.Field{Key: "error", Value: cerr})
	}
	defer dropCookies()

	info, err := o.client.FetchInfo(jobCtx, videoURL, cookiesPath)
	if err != nil {
		return nil, &VideoError{Message: ytdlp.UserMessage(err), Err: err}
	}

	window, err := clip.ResolveWindow(req.StartTime, req.EndTime, info.Duration, o.cfg.MaxClipDuration)
	if err != nil {
		return nil, err
	}

	logger.Info("clipping",
		logging.Field{Key: "title", Value: info.Title},
		logging.Field{Key: "start", Value: window.Start},
		logging.Field{Key: "end", Value: window.End},
		logging.Field{Key: "video_duration", Value: info.Duration})
	o.recordRunning(ctx, jobID, videoURL, info.Title, window, logger)

	if err := os.MkdirAll(o.cfg.DownloadDir, 0o755); err != nil {
		return nil, &VideoError{Message: "Failed to process video.", Err: fmt.Errorf("create download dir: %w", err)}
	}

	dl := ytdlp.DownloadRequest{
		URL:            videoURL,
		Window:         window,
		OutputTemplate: filepath.Join(o.cfg.DownloadDir, jobID+"_%(title)s.%(ext)s"),
		CookiesPath:    cookiesPath,
	}
	err = o.client.Download(jobCtx, dl, func(p float64) {
		o.emitJobEvent(JobEvent{JobID: jobID, Type: JobEventProgress, Percent: p})
	})
	if err != nil {
		o.removeJobFiles(jobID, logger)
		return nil, &VideoError{Message: ytdlp.UserMessage(err), Err: err}
	}

	path, err := o.findOutput(jobID)
	if err != nil {
		o.removeJobFiles(jobID, logger)
		return nil, &VideoError{Message: "Failed to process video.", Err: err}
	}
	fi, err := os.Stat(path)
	if err != nil {
		o.removeJobFiles(jobID, logger)
		return nil, &VideoError{Message: "Failed to process video.", Err: err}
	}

	o.hold(jobID)
	return &ClipResult{
		JobID:    jobID,
		Path:     path,
		FileName: filepath.Base(path),
		Size:     fi.Size(),
		Title:    info.Title,
		Window:   window,
		Cleanup: sync.OnceFunc(func() {
			o.removeJobFiles(jobID, logger)
			o.release(jobID)
		}),
	}, nil
}

func (o *Orchestrator) finish(ctx context.Context, jobID string, res *ClipResult, err error, logger logging.Logger) {
	ev := JobEvent{JobID: jobID, Type: JobEventStatus}
	var errText, fileName string
	var size int64

	switch {
	case err == nil:
		ev.Type = JobEventResult
		ev.Status = registry.JobDone
		ev.FileName, ev.FileSize = res.FileName, res.Size
		fileName, size = res.FileName, res.Size
		logger.Info("clip ready", logging.Field{Key: "file", Value: res.FileName}, logging.Field{Key: "size", Value: res.Size})
	case errors.Is(err, context.Canceled):
		ev.Status = registry.JobCanceled
		ev.Error = "canceled"
		errText = err.Error()
		logger.Info("clip canceled", logging.Field{Key: "error", Value: err})
	default:
		ev.Status = registry.JobFailed
		ev.Error = UserMessage(err)
		errText = err.Error()
		if clip.IsValidation(err) {
			logger.Info("clip rejected", logging.Field{Key: "error", Value: err})
		} else {
			logger.Error("clip failed", logging.Field{Key: "error", Value: err})
		}
	}

	if o.registry != nil {
		if ferr := o.registry.FinishJob(context.WithoutCancel(ctx), jobID, ev.Status, errText, fileName, size); ferr != nil {
			logger.Warn("recording job outcome", logging.Field{Key: "error", Value: ferr})
		}
	}
	o.emitJobEvent(ev)
	o.removeJob(jobID)
}

// recordCreate adds the ledger row. Only an id collision is fatal; the ledger
// is otherwise best effort.
func (o *Orchestrator) recordCreate(ctx context.Context, jobID, sourceURL string, logger logging.Logger) error {
	if o.registry == nil {
		return nil
	}
	_, err := o.registry.CreateJob(context.WithoutCancel(ctx), jobID, sourceURL)
	switch {
	case errors.Is(err, registry.ErrJobExists):
		logger.Info("job id already recorded")
		return ErrJobExists
	case err != nil:
		logger.Warn("recording job", logging.Field{Key: "error", Value: err})
	}
	return nil
}

func (o *Orchestrator) recordRunning(ctx context.Context, jobID, videoURL, title string, w clip.Window, logger logging.Logger) {
	if o.registry == nil {
		return
	}
	if err := o.registry.MarkRunning(context.WithoutCancel(ctx), jobID, videoURL, title, w.Start, w.End); err != nil {
		logger.Warn("recording job start", logging.Field{Key: "error", Value: err})
	}
}

// partialSuffixes are intermediate files the tool leaves next to the output.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// findOutput locates the file produced for jobID, preferring .mp4.
func (o *Orchestrator) findOutput(jobID string) (string, error) {
	entries, err := os.ReadDir(o.cfg.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, jobID+"_") || isPartial(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", ErrOutputMissing
	}
	sort.Strings(candidates)
	for _, name := range candidates {
		if strings.EqualFold(filepath.Ext(name), ".mp4") {
			return filepath.Join(o.cfg.DownloadDir, name), nil
		}
	}
	return filepath.Join(o.cfg.DownloadDir, candidates[0]), nil
}

func isPartial(name string) bool {
	if strings.Contains(name, ".part-Frag") {
		return true
	}
	for _, s := range partialSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// removeJobFiles deletes every file in the download dir carrying the job prefix.
func (o *Orchestrator) removeJobFiles(jobID string, logger logging.Logger) {
	entries, err := os.ReadDir(o.cfg.DownloadDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cleanup: reading download dir", logging.Field{Key: "error", Value: err})
		}
		return
	}
	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), jobID+"_") {
			continue
		}
		p := filepath.Join(o.cfg.DownloadDir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			logger.Warn("cleanup failed", logging.Field{Key: "path", Value: p}, logging.Field{Key: "error", Value: err})
			continue
		}
		removed++
	}
	logger.Debug("cleanup done", logging.Field{Key: "removed", Value: removed})
}

func (o *Orchestrator) hold(jobID string) {
	o.jobsMu.Lock()
	o.held[jobID] = struct{}{}
	o.jobsMu.Unlock()
}

func (o *Orchestrator) release(jobID string) {
	o.jobsMu.Lock()
	delete(o.held, jobID)
	o.jobsMu.Unlock()
}

func (o *Orchestrator) inUse(jobID string) bool {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if _, ok := o.jobs[jobID]; ok {
		return true
	}
	_, ok := o.held[jobID]
	return ok
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() *Config { return o.cfg }

// Cookies returns the credential store used for tool invocations.
func (o *Orchestrator) Cookies() *cookies.Store { return o.cookies }

// Registry returns the job ledger, or nil.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// ToolVersion reports the external tool's version string.
func (o *Orchestrator) ToolVersion(ctx context.Context) (string, error) {
	return o.client.Version(ctx)
}
