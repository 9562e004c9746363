// Package watch invalidates a buffer's cached tree when its backing file
// changes on disk outside the editor session, adapted from the teacher's
// internal/indexing FileWatcher down to a single-file, no-glob shape (the
// analyzer never walks a directory tree, so the teacher's doublestar-based
// exclusion matching has nothing left to filter).
package watch

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/goanalyzer/internal/logging"
)

// Watcher watches a set of open buffers' backing files and invokes
// onChange(bufferID) when one is modified or removed out of band.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func(bufferID string)

	mu      sync.Mutex
	byPath  map[string]string // path -> bufferID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(onChange func(bufferID string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, onChange: onChange, byPath: make(map[string]string)}
	return w, nil
}

// Start begins the event loop. Call once.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	log := logging.For("watch")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			bufferID, tracked := w.byPath[ev.Name]
			w.mu.Unlock()
			if tracked && w.onChange != nil {
				w.onChange(bufferID)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "err", err)
		}
	}
}

// Track begins watching path as the backing file for bufferID.
func (w *Watcher) Track(bufferID, path string) error {
	w.mu.Lock()
	w.byPath[path] = bufferID
	w.mu.Unlock()
	return w.fsw.Add(path)
}

// Untrack stops watching a buffer's backing file (on buffer close).
func (w *Watcher) Untrack(path string) {
	w.mu.Lock()
	delete(w.byPath, path)
	w.mu.Unlock()
	_ = w.fsw.Remove(path)
}

// Close stops the event loop and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.fsw.Close()
}
