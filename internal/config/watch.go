package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce suppresses the duplicate events editors emit on save.
const watchDebounce = 100 * time.Millisecond

// Watcher reports changes to a set of watched files.
// Editors often replace files on save, so the parent directories are
// watched and events are filtered back down to the requested paths.
type Watcher struct {
	watcher *fsnotify.Watcher
	// watched maps cleaned absolute paths to true.
	watched map[string]bool

	// Events receives the path of a changed watched file.
	Events chan string
	// Errors receives watcher failures.
	Errors chan error

	closeCh chan struct{}
	once    sync.Once
}

// NewWatcher watches the provided files for changes.
func NewWatcher(paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool, len(paths))

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = fsw.Close()

			return nil, fmt.Errorf("resolve %q: %w", path, err)
		}

		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()

			return nil, fmt.Errorf("watch %q: %w", dir, err)
		}
	}

	w := &Watcher{
		watcher: fsw,
		watched: watched,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Close stops the watcher. Events and Errors are closed by the event loop
// once it has drained, so a concurrent send can never hit a closed channel.
func (w *Watcher) Close() error {
	var err error

	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})

	return err
}

// run filters and debounces raw filesystem events. It owns the Events and
// Errors channels and closes them on exit.
func (w *Watcher) run() {
	defer func() {
		close(w.Events)
		close(w.Errors)
	}()

	last := make(map[string]time.Time)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.watched[abs] {
				continue
			}

			now := time.Now()
			if t, ok := last[abs]; ok && now.Sub(t) < watchDebounce {
				continue
			}

			last[abs] = now

			select {
			case w.Events <- abs:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}
