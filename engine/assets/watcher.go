package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/preloader/engine/core"
)

// ChangeFunc receives the slash-separated path, relative to the watched base
// directory, of a file that was written, removed or renamed.
type ChangeFunc func(path string)

// Watcher follows an asset directory tree and tells subscribers when files
// change, so caches can drop stale entries.
type Watcher struct {
	base      string
	fsnotify  *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.RWMutex
	subscribers []ChangeFunc
}

func NewWatcher(base string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		fsWatch.Close()
		return nil, err
	}
	return &Watcher{
		base:     abs,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

// Subscribe registers fn for every future change.
func (w *Watcher) Subscribe(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start watches the base directory and all sub-directories.
func (w *Watcher) Start() error {
	if err := w.watchRecursive(w.base); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.run()
	core.LogInfo("Watching assets under '%s'.", w.base)
	return nil
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fsnotify.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handle(e)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := w.watchRecursive(e.Name); err != nil {
				core.LogWarn("asset watcher: cannot watch %s: %s", e.Name, err.Error())
			}
			return
		}
	}
	// Can't stat a deleted path, so removals are reported whatever they were.
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Remove) && !e.Has(fsnotify.Rename) && !e.Has(fsnotify.Create) {
		return
	}
	rel, err := filepath.Rel(w.base, e.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	core.LogDebug("asset changed: %s (%s)", rel, e.Op.String())

	w.mu.RLock()
	subs := append([]ChangeFunc(nil), w.subscribers...)
	w.mu.RUnlock()
	for _, fn := range subs {
		fn(rel)
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (w *Watcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			// the directory may vanish between the event and the walk
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if fi.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		return nil
	})
}
