package systems

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/math"
)

const (
	// DefaultInterval is the nominal animation interval between preload steps.
	DefaultInterval = time.Second / 60
	// DefaultMinFrameRate is the rate under which async sessions skip a step.
	DefaultMinFrameRate = 20.0
)

type State int32

const (
	// No tick armed; counters are zero or describe an aborted run.
	StateIdle State = iota
	// Tick armed, resources being submitted and settled.
	StateRunning
	// Everything settled; the completion callback is being invoked.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	}
	return "invalid"
}

// CompletionFunc is invoked once per finished run with the session that ran it.
type CompletionFunc func(s *Session)

// ErrorFunc is invoked when a run is aborted by a configuration error.
type ErrorFunc func(s *Session, err error)

var sessionType = reflect.TypeOf(&Session{})

// MethodTarget builds a CompletionFunc calling the named method on receiver.
// The method must take exactly one *Session argument.
func MethodTarget(receiver any, method string) (CompletionFunc, error) {
	if receiver == nil {
		return nil, errors.New("completion target: nil receiver")
	}
	m := reflect.ValueOf(receiver).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("completion target: %T has no method %q", receiver, method)
	}
	t := m.Type()
	if t.NumIn() != 1 || t.In(0) != sessionType {
		return nil, fmt.Errorf("completion target: %T.%s must take a single *systems.Session", receiver, method)
	}
	return func(s *Session) {
		m.Call([]reflect.Value{reflect.ValueOf(s)})
	}, nil
}

/** @brief The configuration for a preload session */
type SessionConfig struct {
	/** @brief Maps kinds to loaders. Required. */
	Dispatch *DispatchTable
	/** @brief Drives the preload steps. Required. */
	Ticks TickSource
	/** @brief Consulted by async runs only. Optional. */
	FrameRate FrameRateSignal
	/** @brief Time between steps, DefaultInterval when zero. */
	Interval time.Duration
	/** @brief Async runs skip steps below this rate, DefaultMinFrameRate when zero. */
	MinFrameRate float64
	/** @brief Optional. */
	Metrics *PreloadMetrics
}

// Request describes one call to Start.
type Request struct {
	// Groups are flattened one level into the worklist. Ignored when Resume is set.
	Groups [][]assets.Descriptor
	// OnComplete replaces the completion callback when non-nil.
	OnComplete CompletionFunc
	// OnError replaces the abort callback when non-nil.
	OnError ErrorFunc
	// Async enables frame-rate throttling. A resumed running session keeps
	// its current setting.
	Async bool
	// Resume continues the current run without touching its counters. On an
	// idle session it restarts the current worklist from zero.
	Resume bool
}

// Session owns one preload worklist, its progress counters and its tick
// registration. Counters change only inside the tick step; settle signals
// from loaders go through a mailbox the step drains.
type Session struct {
	id           string
	dispatch     *DispatchTable
	ticks        TickSource
	frameRate    FrameRateSignal
	interval     time.Duration
	minFrameRate float64
	metrics      *PreloadMetrics
	inbox        *mailbox
	queue        *PreloadQueue

	mu         sync.Mutex
	submitted  int
	tick       TickHandle
	armed      bool
	onComplete CompletionFunc
	onError    ErrorFunc
	err        error

	// read without the lock
	state      atomic.Int32
	async      atomic.Bool
	generation atomic.Uint64
	// total in the high 32 bits, completed in the low 32 bits
	progress       atomic.Uint64
	submittedCount atomic.Int64
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dispatch == nil {
		return nil, errors.New("session: a dispatch table is required")
	}
	if cfg.Ticks == nil {
		return nil, errors.New("session: a tick source is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinFrameRate <= 0 {
		cfg.MinFrameRate = DefaultMinFrameRate
	}
	return &Session{
		id:           uuid.NewString(),
		dispatch:     cfg.Dispatch,
		ticks:        cfg.Ticks,
		frameRate:    cfg.FrameRate,
		interval:     cfg.Interval,
		minFrameRate: cfg.MinFrameRate,
		metrics:      cfg.Metrics,
		inbox:        newMailbox(),
		queue:        NewPreloadQueue(),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Async() bool {
	return s.async.Load()
}

// Err returns the configuration error that aborted the last run, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Percentage is floor(completed/total*100), or 100 when there is nothing to
// load. It never blocks and may be polled from any goroutine.
func (s *Session) Percentage() int {
	total, completed := s.counts()
	return math.Percent(completed, total)
}

func (s *Session) Total() int {
	total, _ := s.counts()
	return int(total)
}

func (s *Session) Completed() int {
	_, completed := s.counts()
	return int(completed)
}

func (s *Session) Submitted() int {
	return int(s.submittedCount.Load())
}

// Exists reports whether a resource with this key was ever submitted by
// this session, including by runs that have already completed.
func (s *Session) Exists(key string) bool {
	return s.queue.Exists(key)
}

// Items returns a copy of the current worklist.
func (s *Session) Items() []assets.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Items()
}

// Preload starts a synchronous-mode run over the flattened groups.
func (s *Session) Preload(onComplete CompletionFunc, groups ...[]assets.Descriptor) error {
	return s.Start(Request{Groups: groups, OnComplete: onComplete})
}

// PreloadAsync is Preload with frame-rate throttling.
func (s *Session) PreloadAsync(onComplete CompletionFunc, groups ...[]assets.Descriptor) error {
	return s.Start(Request{Groups: groups, OnComplete: onComplete, Async: true})
}

// Resume continues the current run, or restarts the current worklist when idle.
func (s *Session) Resume(onComplete CompletionFunc) error {
	return s.Start(Request{OnComplete: onComplete, Async: s.Async(), Resume: true})
}

// Start arms the session. Every descriptor of a new worklist is classified
// first; an unknown kind or a kind without handler returns a
// ConfigurationError and leaves the session untouched.
func (s *Session) Start(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume := req.Resume && s.State() == StateRunning
	if !resume {
		items := s.queue.Items()
		if !req.Resume {
			items = assets.Flatten(req.Groups...)
		}
		for _, d := range items {
			if _, _, err := s.dispatch.Resolve(d); err != nil {
				core.LogError("preload %s rejected: %s", s.id, err.Error())
				return err
			}
		}
		s.queue.Replace(items)
		s.generation.Add(1)
		s.submitted = 0
		s.submittedCount.Store(0)
		s.setCounts(len(items), 0)
		s.err = nil
		// whatever is left belongs to an abandoned run
		s.inbox.drain()
	}

	if req.OnComplete != nil {
		s.onComplete = req.OnComplete
	}
	if req.OnError != nil {
		s.onError = req.OnError
	}
	if !resume {
		s.async.Store(req.Async)
	}
	s.state.Store(int32(StateRunning))
	if !s.armed {
		s.tick = s.ticks.ScheduleRecurring(s.step, s.interval)
		s.armed = true
	}
	s.metrics.observePercentage(s.Percentage())

	total, completed := s.counts()
	if resume {
		core.LogDebug("preload %s resumed at %d/%d", s.id, completed, total)
	} else {
		core.LogInfo("preload %s started with %d resources (async=%t)", s.id, total, req.Async)
	}
	return nil
}

// Release unloads every descriptor from its cache. It does not look at the
// session's worklist, counters or membership record.
func (s *Session) Release(descs []assets.Descriptor) error {
	for _, d := range descs {
		if err := s.dispatch.Unload(d); err != nil {
			core.LogError("release of %s failed: %s", d.Key(), err.Error())
			return err
		}
	}
	return nil
}

// Loaded signals that the resource behind key finished loading. Use it from
// handlers that settle outside their SettleFunc.
func (s *Session) Loaded(key string) {
	s.post(s.generation.Load(), key, nil)
}

// Failed signals that the resource behind key could not be loaded. The
// resource still counts toward completion.
func (s *Session) Failed(key string, err error) {
	if err == nil {
		err = core.ErrUnknown
	}
	s.post(s.generation.Load(), key, err)
}

func (s *Session) post(generation uint64, key string, err error) {
	if err != nil {
		var le *core.AssetLoadError
		if !errors.As(err, &le) {
			err = &core.AssetLoadError{Key: key, Err: err}
		}
	}
	s.inbox.post(settleEvent{generation: generation, key: key, err: err})
}

func (s *Session) settleFunc(generation uint64, key string) SettleFunc {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			s.post(generation, key, err)
		})
	}
}

func (s *Session) step() {
	if after := s.advance(); after != nil {
		after()
	}
}

// advance runs one tick under the lock. Callbacks that must run without the
// lock are returned.
func (s *Session) advance() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateRunning {
		return nil
	}

	s.applySettled()
	percent := s.Percentage()
	s.metrics.observePercentage(percent)
	if percent >= 100 {
		return s.finish()
	}

	if s.Async() && s.frameRate != nil {
		if rate, ok := s.frameRate.CurrentRate(); ok && rate < s.minFrameRate {
			core.LogDebug("frame rate %.1f below %.0f fps, skip frame", rate, s.minFrameRate)
			s.metrics.observeSkippedTick()
			return nil
		}
	}

	total, _ := s.counts()
	if s.submitted >= int(total) {
		return nil
	}

	d := s.queue.At(s.submitted)
	if err := s.dispatch.Load(d, s.settleFunc(s.generation.Load(), d.Key())); err != nil {
		return s.abort(err)
	}
	s.queue.MarkSubmitted(d.Key())
	s.submitted++
	s.submittedCount.Store(int64(s.submitted))
	s.metrics.observeSubmitted()

	// synchronous handlers have already settled
	s.applySettled()
	return nil
}

// applySettled folds pending settle events into the completed counter.
func (s *Session) applySettled() {
	for _, e := range s.inbox.drain() {
		if e.generation != s.generation.Load() {
			core.LogDebug("dropping settle of %q from an earlier run", e.key)
			continue
		}
		total, completed := s.counts()
		if int(completed) >= s.submitted {
			core.LogWarn("settle of %q has no pending submission, ignored", e.key)
			continue
		}
		if e.err != nil {
			core.LogWarn("%s", e.err.Error())
		}
		s.setCounts(int(total), int(completed)+1)
		s.metrics.observeSettled(e.err)
	}
}

func (s *Session) finish() func() {
	s.state.Store(int32(StateDraining))
	s.cancelTick()
	cb := s.onComplete
	generation := s.generation.Load()
	total, _ := s.counts()
	core.LogInfo("preload %s complete, %d resources settled", s.id, total)
	s.metrics.observeRun("completed")

	return func() {
		if cb != nil {
			cb(s)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		// the callback may have started the next run already
		if s.generation.Load() != generation || s.State() != StateDraining {
			return
		}
		s.submitted = 0
		s.submittedCount.Store(0)
		s.setCounts(0, 0)
		s.state.Store(int32(StateIdle))
	}
}

func (s *Session) abort(err error) func() {
	s.err = err
	s.cancelTick()
	// settles still in flight belong to a dead run
	s.generation.Add(1)
	s.state.Store(int32(StateIdle))
	cb := s.onError
	core.LogError("preload %s aborted: %s", s.id, err.Error())
	s.metrics.observeRun("aborted")

	if cb == nil {
		return nil
	}
	return func() {
		cb(s, err)
	}
}

func (s *Session) cancelTick() {
	if !s.armed {
		return
	}
	s.ticks.Cancel(s.tick)
	s.armed = false
}

func (s *Session) counts() (total, completed uint32) {
	p := s.progress.Load()
	return uint32(p >> 32), uint32(p)
}

func (s *Session) setCounts(total, completed int) {
	s.progress.Store(uint64(uint32(total))<<32 | uint64(uint32(completed)))
}
