package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports growth of a spooled report file as a fraction of an
// estimated final size. Collectors that do not emit their own progress use
// it as a fallback progress source.
type Watcher struct {
	fw         *fsnotify.Watcher
	path       string
	estimated  int64
	onProgress func(fraction float64)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWatcher watches path and invokes onProgress with a fraction in [0, 1)
// each time the file grows. The fraction is capped below 1 so completion is
// always signaled by the collector, never by file size. estimated must be
// positive.
func NewWatcher(path string, estimated int64, onProgress func(fraction float64)) (*Watcher, error) {
	if estimated <= 0 {
		return nil, fmt.Errorf("estimated size must be positive, got %d", estimated)
	}
	if onProgress == nil {
		return nil, fmt.Errorf("progress callback is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory rather than the file: directory watches survive
	// the collector replacing the file with a rename.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		fw:         fw,
		path:       path,
		estimated:  estimated,
		onProgress: onProgress,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var lastSize int64 = -1
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			size := info.Size()
			if size <= lastSize {
				continue
			}
			lastSize = size
			w.onProgress(w.fraction(size))

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; progress simply stalls.
		}
	}
}

// fraction maps a byte count to a progress fraction strictly below 1.
func (w *Watcher) fraction(size int64) float64 {
	f := float64(size) / float64(w.estimated)
	if f >= 0.99 {
		return 0.99
	}
	return f
}

// Close stops the watcher and waits for the delivery goroutine to exit. No
// callbacks are invoked after Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.fw.Close()
	w.wg.Wait()
	return err
}
