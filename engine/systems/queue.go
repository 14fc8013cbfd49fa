package systems

import (
	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/containers"
)

// PreloadQueue is the ordered worklist of one session plus the record of
// every key ever submitted through it. Replacing the list keeps the record.
type PreloadQueue struct {
	items   []assets.Descriptor
	members *containers.Set[string]
}

func NewPreloadQueue() *PreloadQueue {
	return &PreloadQueue{
		members: containers.NewSet[string](),
	}
}

// Replace swaps the worklist for the flattened groups.
func (q *PreloadQueue) Replace(groups ...[]assets.Descriptor) {
	q.items = assets.Flatten(groups...)
}

func (q *PreloadQueue) Len() int {
	return len(q.items)
}

func (q *PreloadQueue) At(i int) assets.Descriptor {
	return q.items[i]
}

// Items returns a copy of the worklist.
func (q *PreloadQueue) Items() []assets.Descriptor {
	return append([]assets.Descriptor(nil), q.items...)
}

// MarkSubmitted records that the resource behind key was handed to a loader.
func (q *PreloadQueue) MarkSubmitted(key string) {
	q.members.Add(key)
}

// Exists is safe to call from any goroutine.
func (q *PreloadQueue) Exists(key string) bool {
	return q.members.Has(key)
}
