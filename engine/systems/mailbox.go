package systems

import (
	"sync"

	"github.com/spaghettifunk/preloader/engine/containers"
)

// settleEvent is posted by loaders, from any goroutine, and applied by the
// session on its tick.
type settleEvent struct {
	generation uint64
	key        string
	err        error
}

// mailbox serializes settle events so counters are only ever touched by the
// tick step.
type mailbox struct {
	mu     sync.Mutex
	events *containers.RingQueue[settleEvent]
}

func newMailbox() *mailbox {
	return &mailbox{
		events: containers.NewGrowableRingQueue[settleEvent](16),
	}
}

func (m *mailbox) post(e settleEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// a growable queue never reports full
	_ = m.events.Enqueue(e)
}

// drain removes and returns every pending event in posting order.
func (m *mailbox) drain() []settleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events.IsEmpty() {
		return nil
	}
	out := make([]settleEvent, 0, m.events.Len())
	for !m.events.IsEmpty() {
		e, _ := m.events.Dequeue()
		out = append(out, e)
	}
	return out
}
