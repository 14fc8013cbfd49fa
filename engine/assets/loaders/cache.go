package loaders

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// ErrOutsideBase is returned for sources that resolve above the asset base
// directory.
var ErrOutsideBase = errors.New("source escapes the asset base directory")

// Invalidator drops cached entries whose file changed on disk. Paths are
// slash-separated and relative to the asset base directory.
type Invalidator interface {
	Invalidate(rel string) bool
}

// cache is the bookkeeping shared by the loaders: where files live, the pool
// decodes run on and the decoded entries keyed by cleaned relative path.
type cache[T any] struct {
	name string
	base string
	jobs *systems.JobSystem

	mu      sync.RWMutex
	entries map[string]T
}

func newCache[T any](name, base string, jobs *systems.JobSystem) *cache[T] {
	return &cache[T]{
		name:    name,
		base:    base,
		jobs:    jobs,
		entries: make(map[string]T),
	}
}

// cleanKey turns a source locator into a slash-separated path relative to the
// asset base directory.
func cleanKey(src string) (string, error) {
	key := path.Clean(assets.StripQuery(src))
	if key == ".." || strings.HasPrefix(key, "../") || path.IsAbs(key) {
		return "", fmt.Errorf("%s: %w", src, ErrOutsideBase)
	}
	return key, nil
}

// resolve turns a source locator into its cache key and its file path.
func (c *cache[T]) resolve(src string) (key, full string, err error) {
	if key, err = cleanKey(src); err != nil {
		return "", "", err
	}
	return key, filepath.Join(c.base, filepath.FromSlash(key)), nil
}

// load decodes src on the job system unless it is cached already, then
// settles from the worker. It never waits for room in the job queue.
func (c *cache[T]) load(src string, decode func(full string) (T, error), settle systems.SettleFunc) {
	key, full, err := c.resolve(src)
	if err != nil {
		settle(err)
		return
	}
	if _, ok := c.get(key); ok {
		settle(nil)
		return
	}

	c.jobs.Enqueue(systems.JobTask{
		Name: fmt.Sprintf("%s %s", c.name, key),
		Run: func() error {
			v, err := decode(full)
			if err != nil {
				return err
			}
			c.mu.Lock()
			c.entries[key] = v
			c.mu.Unlock()
			return nil
		},
		OnComplete: func() { settle(nil) },
		OnFailure:  settle,
	}, settle)
}

func (c *cache[T]) lookup(src string) (T, bool) {
	key, _, err := c.resolve(src)
	if err != nil {
		var zero T
		return zero, false
	}
	return c.get(key)
}

func (c *cache[T]) get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache[T]) evict(src string) bool {
	key, _, err := c.resolve(src)
	if err != nil {
		return false
	}
	return c.drop(key)
}

func (c *cache[T]) drop(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

func (c *cache[T]) Invalidate(rel string) bool {
	if !c.drop(path.Clean(rel)) {
		return false
	}
	core.LogDebug("%s: dropped %s after it changed on disk", c.name, rel)
	return true
}

// Len returns the number of cached entries.
func (c *cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// InvalidateOnChange drops entries from every target when the watcher reports
// their file changed.
func InvalidateOnChange(w *assets.Watcher, targets ...Invalidator) {
	w.Subscribe(func(rel string) {
		for _, t := range targets {
			t.Invalidate(rel)
		}
	})
}
