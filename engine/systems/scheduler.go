package systems

import (
	"sync"
	"time"
)

// TickHandle identifies one recurring registration on a TickSource.
type TickHandle uint64

// TickSource runs callbacks at a fixed cadence. Cancel must be safe to call
// from inside the callback being cancelled.
type TickSource interface {
	ScheduleRecurring(fn func(), interval time.Duration) TickHandle
	Cancel(h TickHandle)
}

// FrameRateSignal reports the host's current frame rate; ok is false while
// no rate is known yet.
type FrameRateSignal interface {
	CurrentRate() (rate float64, ok bool)
}

type frameEntry struct {
	fn        func()
	interval  time.Duration
	elapsed   time.Duration
	cancelled bool
}

// FrameScheduler is a TickSource driven by the host frame loop: every
// Update(delta) fires the callbacks whose interval has elapsed, at most once
// per callback per frame, on the caller's goroutine.
type FrameScheduler struct {
	mu      sync.Mutex
	next    TickHandle
	entries map[TickHandle]*frameEntry
	order   []TickHandle
}

func NewFrameScheduler() *FrameScheduler {
	return &FrameScheduler{
		entries: make(map[TickHandle]*frameEntry),
	}
}

func (s *FrameScheduler) ScheduleRecurring(fn func(), interval time.Duration) TickHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries[s.next] = &frameEntry{fn: fn, interval: interval}
	s.order = append(s.order, s.next)
	return s.next
}

func (s *FrameScheduler) Cancel(h TickHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return
	}
	e.cancelled = true
	delete(s.entries, h)
	for i, id := range s.order {
		if id == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live registrations.
func (s *FrameScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FrameScheduler) Update(delta time.Duration) {
	s.mu.Lock()
	due := make([]*frameEntry, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		e.elapsed += delta
		if e.elapsed < e.interval {
			continue
		}
		e.elapsed -= e.interval
		// a long frame does not buy extra ticks later
		if e.elapsed >= e.interval {
			e.elapsed = 0
		}
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.mu.Lock()
		cancelled := e.cancelled
		s.mu.Unlock()
		if !cancelled {
			e.fn()
		}
	}
}

// TimerScheduler is a TickSource backed by wall-clock tickers, for callers
// without a frame loop. Each registration runs its callback serially on its
// own goroutine.
type TimerScheduler struct {
	mu     sync.Mutex
	next   TickHandle
	timers map[TickHandle]chan struct{}
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[TickHandle]chan struct{}),
	}
}

func (s *TimerScheduler) ScheduleRecurring(fn func(), interval time.Duration) TickHandle {
	if interval <= 0 {
		interval = time.Millisecond
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.next++
	h := s.next
	s.timers[h] = done
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// cancellation wins over a tick that raced with it
				select {
				case <-done:
					return
				default:
				}
				fn()
			case <-done:
				return
			}
		}
	}()
	return h
}

func (s *TimerScheduler) Cancel(h TickHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if done, ok := s.timers[h]; ok {
		close(done)
		delete(s.timers, h)
	}
}

// Close cancels every registration.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, done := range s.timers {
		close(done)
		delete(s.timers, h)
	}
}
