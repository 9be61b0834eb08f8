package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/raysh454/clipper/internal/logging"
)

// Watcher follows edits made to the cookie file outside the store (a text
// editor, a deploy script) and keeps the store's cached status honest.
//
// fsnotify watches the parent directory: editors and Store.Write both replace
// the file, which drops a watch placed on the file itself.
type Watcher struct {
	store  *Store
	fs     *fsnotify.Watcher
	logger logging.Logger

	changes chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(store *Store, logger logging.Logger) (*Watcher, error) {
	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cookies dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		store:   store,
		fs:      fsw,
		logger:  logger,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	store.setWatched(true)
	go w.loop()
	return w, nil
}

// Changes delivers a signal after each observed change. Signals coalesce.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.store.Path() {
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			w.store.invalidate()
			w.logger.Info("cookies file changed", logging.Field{Key: "op", Value: ev.Op.String()})
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cookies watcher error", logging.Field{Key: "error", Value: err})
		}
	}
}

func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
		w.store.setWatched(false)
	})
	return w.fs.Close()
}
