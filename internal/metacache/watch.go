package metacache

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cache entries when their recorded source files change
// on disk, using OS-native notifications.
type Watcher struct {
	cache *Cache
	w     *fsnotify.Watcher
	done  chan struct{}
}

// NewWatcher creates a watcher bound to the cache and starts its event loop.
func NewWatcher(cache *Cache) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{cache: cache, w: fw, done: make(chan struct{})}
	go w.loop()

	return w, nil
}

// Add starts watching a file or directory path.
func (w *Watcher) Add(path string) error {
	return w.w.Add(path)
}

// Remove stops watching a path.
func (w *Watcher) Remove(path string) error {
	return w.w.Remove(path)
}

// Close stops the event loop and releases the OS watch handles.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done

	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}

			w.handleEvent(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}

			log.Printf("metacache: watch error: %v", err)
		}
	}
}

// handleEvent drops every entry recorded against a path that was written,
// removed, or renamed. Creation and permission changes leave cached
// aggregates valid.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if n := w.cache.InvalidateSource(ev.Name); n > 0 {
		log.Printf("metacache: invalidated %d entries for %s", n, ev.Name)
	}
}
