// Package cookies manages the credential file handed to the extraction tool.
// The file content is opaque (usually Netscape cookies.txt); the store only
// reads it, replaces it atomically, and hands out private copies.
package cookies

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/clipper/internal/logging"
)

var ErrEmptyCookies = errors.New("cookies content is required")

// Status describes the cookie file as reported to the editor page.
type Status struct {
	Exists       bool       `json:"exists"`
	HasContent   bool       `json:"hasContent"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified"`
}

// Store guards a single cookie file. Writers replace the file with a rename so
// concurrent readers see either the old or the new content, never a mix.
type Store struct {
	path   string
	logger logging.Logger

	mu sync.RWMutex

	// cached is only used while a Watcher keeps it fresh.
	cacheMu sync.Mutex
	cached  *Status
	gen     uint64
	watched bool
}

func NewStore(path string, logger logging.Logger) *Store {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Store{
		path:   filepath.Clean(path),
		logger: logger,
	}
}

// Path returns the location of the cookie file.
func (s *Store) Path() string {
	return s.path
}

// Status stats and reads the cookie file.
func (s *Store) Status() (Status, error) {
	s.cacheMu.Lock()
	if s.watched && s.cached != nil {
		st := *s.cached
		s.cacheMu.Unlock()
		return st, nil
	}
	gen := s.gen
	s.cacheMu.Unlock()

	s.mu.RLock()
	st, err := s.readStatus()
	s.mu.RUnlock()
	if err != nil {
		return Status{}, err
	}

	s.cacheMu.Lock()
	if s.watched && s.gen == gen {
		s.cached = &st
	}
	s.cacheMu.Unlock()
	return st, nil
}

func (s *Store) readStatus() (Status, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("stat cookies file: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Status{}, fmt.Errorf("read cookies file: %w", err)
	}

	mod := info.ModTime().UTC()
	return Status{
		Exists:       true,
		HasContent:   strings.TrimSpace(string(data)) != "",
		Size:         info.Size(),
		LastModified: &mod,
	}, nil
}

// Write replaces the cookie file with content.
func (s *Store) Write(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyCookies
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cookies dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cookies file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cookies file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cookies file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cookies file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp cookies file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cookies file: %w", err)
	}

	s.invalidate()
	s.logger.Info("cookies updated", logging.Field{Key: "path", Value: s.path}, logging.Field{Key: "size", Value: len(content)})
	return nil
}

// Snapshot copies the cookie file into dir for a single job, so the tool can
// read and write back its own copy. It returns an empty path when there are
// no usable cookies. cleanup is always safe to call.
func (s *Store) Snapshot(dir, jobID string) (path string, cleanup func(), err error) {
	cleanup = func() {}

	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return "", cleanup, nil
	}
	if err != nil {
		return "", cleanup, fmt.Errorf("read cookies file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", cleanup, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", cleanup, fmt.Errorf("create cookies snapshot dir: %w", err)
	}
	path = filepath.Join(dir, "cookies-"+jobID+".txt")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", cleanup, fmt.Errorf("write cookies snapshot: %w", err)
	}

	return path, func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("removing cookies snapshot", logging.Field{Key: "path", Value: path}, logging.Field{Key: "error", Value: err})
		}
	}, nil
}

func (s *Store) invalidate() {
	s.cacheMu.Lock()
	s.cached = nil
	s.gen++
	s.cacheMu.Unlock()
}

func (s *Store) setWatched(v bool) {
	s.cacheMu.Lock()
	s.watched = v
	s.cached = nil
	s.gen++
	s.cacheMu.Unlock()
}
