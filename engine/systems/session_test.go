package systems

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler records loads. With immediate set it settles inside Load,
// otherwise the settle funcs are kept for the test to call.
type fakeHandler struct {
	mu        sync.Mutex
	immediate bool
	fail      error
	loadErr   error
	loaded    []string
	unloaded  []string
	pending   map[string]SettleFunc
}

func newFakeHandler(immediate bool) *fakeHandler {
	return &fakeHandler{immediate: immediate, pending: make(map[string]SettleFunc)}
}

func (h *fakeHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.mu.Lock()
	if h.loadErr != nil {
		h.mu.Unlock()
		return h.loadErr
	}
	h.loaded = append(h.loaded, d.Key())
	immediate, fail := h.immediate, h.fail
	if !immediate {
		h.pending[d.Key()] = settle
	}
	h.mu.Unlock()

	if immediate {
		settle(fail)
	}
	return nil
}

func (h *fakeHandler) Unload(d assets.Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloaded = append(h.unloaded, d.Key())
	return nil
}

func (h *fakeHandler) settle(t *testing.T, key string, err error) {
	t.Helper()
	h.mu.Lock()
	fn, ok := h.pending[key]
	h.mu.Unlock()
	require.True(t, ok, "no pending load for %s", key)
	fn(err)
}

func (h *fakeHandler) loads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loaded...)
}

type fixedRate struct {
	mu   sync.Mutex
	rate float64
	ok   bool
}

func (f *fixedRate) CurrentRate() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate, f.ok
}

func (f *fixedRate) set(rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate, f.ok = rate, true
}

type harness struct {
	session *Session
	frames  *FrameScheduler
	images  *fakeHandler
	texts   *fakeHandler
	rate    *fixedRate
	metrics *PreloadMetrics
}

func newHarness(t *testing.T, immediate bool) *harness {
	t.Helper()
	table := NewDispatchTable(Subsystems{})
	images := newFakeHandler(immediate)
	texts := newFakeHandler(immediate)
	require.NoError(t, table.Register(assets.KindImage, images))
	require.NoError(t, table.Register(assets.KindText, texts))

	metrics, err := NewPreloadMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	frames := NewFrameScheduler()
	rate := &fixedRate{}
	s, err := NewSession(SessionConfig{
		Dispatch:  table,
		Ticks:     frames,
		FrameRate: rate,
		Metrics:   metrics,
	})
	require.NoError(t, err)
	return &harness{session: s, frames: frames, images: images, texts: texts, rate: rate, metrics: metrics}
}

func (h *harness) run(frames int) {
	for i := 0; i < frames; i++ {
		h.frames.Update(DefaultInterval)
	}
}

func sources(srcs ...string) []assets.Descriptor {
	out := make([]assets.Descriptor, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, assets.Source(s))
	}
	return out
}

func TestSessionCompletesExactlyOnce(t *testing.T) {
	h := newHarness(t, true)

	calls := 0
	var percentAtCall int
	var stateAtCall State
	err := h.session.Preload(func(s *Session) {
		calls++
		percentAtCall = s.Percentage()
		stateAtCall = s.State()
	}, sources("a.png", "b.png"), sources("c.txt"))
	require.NoError(t, err)
	assert.Equal(t, 3, h.session.Total())
	assert.Equal(t, StateRunning, h.session.State())

	h.run(10)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 100, percentAtCall)
	assert.Equal(t, StateDraining, stateAtCall)
	assert.Equal(t, []string{"a.png", "b.png"}, h.images.loads())
	assert.Equal(t, []string{"c.txt"}, h.texts.loads())

	assert.Equal(t, StateIdle, h.session.State())
	assert.Equal(t, 0, h.session.Total())
	assert.Equal(t, 0, h.session.Submitted())
	assert.Equal(t, 0, h.frames.Len(), "tick must be cancelled")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.runs.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.submitted))
}

func TestSessionSubmitsOnePerTick(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.session.Preload(nil, sources("a.png", "b.png", "c.png")))

	h.run(1)
	assert.Equal(t, []string{"a.png"}, h.images.loads())
	h.run(1)
	assert.Equal(t, []string{"a.png", "b.png"}, h.images.loads())
	h.run(5)
	assert.Equal(t, 3, h.session.Submitted())
	assert.Equal(t, 0, h.session.Completed())
	assert.Equal(t, StateRunning, h.session.State(), "nothing settled yet")
}

func TestSessionEmptyCompletesOnFirstTick(t *testing.T) {
	h := newHarness(t, true)
	calls := 0
	require.NoError(t, h.session.Preload(func(*Session) { calls++ }))
	assert.Equal(t, 100, h.session.Percentage())

	h.run(1)
	assert.Equal(t, 1, calls)
	assert.Empty(t, h.images.loads())
	assert.Empty(t, h.texts.loads())
	assert.Equal(t, StateIdle, h.session.State())
}

func TestSessionPercentageMonotonic(t *testing.T) {
	h := newHarness(t, false)
	calls := 0
	require.NoError(t, h.session.Preload(func(*Session) { calls++ }, sources("a.png", "b.png", "c.png", "d.png")))

	h.run(4)
	require.Equal(t, 4, h.session.Submitted())

	last := h.session.Percentage()
	assert.Equal(t, 0, last)
	expected := []int{25, 50, 75}
	for i, key := range []string{"c.png", "a.png", "d.png"} {
		h.images.settle(t, key, nil)
		h.run(1)
		p := h.session.Percentage()
		assert.GreaterOrEqual(t, p, last)
		assert.Equal(t, expected[i], p)
		last = p
	}
	assert.Equal(t, 0, calls)

	h.images.settle(t, "b.png", nil)
	h.run(1)
	assert.Equal(t, 1, calls)
}

func TestSessionFailuresStillComplete(t *testing.T) {
	h := newHarness(t, true)
	h.texts.fail = errors.New("disk on fire")

	calls := 0
	require.NoError(t, h.session.Preload(func(*Session) { calls++ }, sources("a.png", "b.txt", "c.png", "d.txt")))
	h.run(10)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.settled.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.settled.WithLabelValues("success")))
}

func TestSessionAsyncSkipsSlowFrames(t *testing.T) {
	h := newHarness(t, true)
	h.rate.set(10)

	require.NoError(t, h.session.PreloadAsync(nil, sources("a.png", "b.png")))
	h.run(3)
	assert.Empty(t, h.images.loads())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.skippedTicks))

	h.rate.set(60)
	h.run(1)
	assert.Equal(t, []string{"a.png"}, h.images.loads(), "resumes at the same index")

	h.rate.set(19.9)
	h.run(2)
	assert.Equal(t, []string{"a.png"}, h.images.loads())
}

func TestSessionAsyncRunsWhileRateUnknown(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.session.PreloadAsync(nil, sources("a.png")))
	h.run(1)
	assert.Equal(t, []string{"a.png"}, h.images.loads())
}

func TestSessionSyncIgnoresFrameRate(t *testing.T) {
	h := newHarness(t, true)
	h.rate.set(5)
	require.NoError(t, h.session.Preload(nil, sources("a.png", "b.png")))
	h.run(2)
	assert.Equal(t, []string{"a.png", "b.png"}, h.images.loads())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.skippedTicks))
}

func TestSessionExists(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.session.Preload(nil, sources("a.png", "b.png")))

	assert.False(t, h.session.Exists("a.png"), "not submitted yet")
	h.run(1)
	assert.True(t, h.session.Exists("a.png"))
	assert.False(t, h.session.Exists("b.png"))

	h.run(5)
	require.Equal(t, StateIdle, h.session.State())
	assert.True(t, h.session.Exists("a.png"), "membership outlives the run")
	assert.True(t, h.session.Exists("b.png"))

	require.NoError(t, h.session.Preload(nil, sources("c.png")))
	assert.True(t, h.session.Exists("a.png"), "membership outlives a new worklist")
}

func TestSessionResumeKeepsProgress(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.session.Preload(nil, sources("a.png", "b.png", "c.png")))
	h.run(2)
	h.images.settle(t, "a.png", nil)
	h.run(1)
	require.Equal(t, 3, h.session.Submitted())
	require.Equal(t, 1, h.session.Completed())

	require.NoError(t, h.session.Resume(nil))
	assert.Equal(t, 3, h.session.Submitted())
	assert.Equal(t, 1, h.session.Completed())
	assert.Equal(t, 3, h.session.Total())
	assert.Equal(t, 1, h.frames.Len(), "a second start must not arm another tick")
}

func TestSessionResumeKeepsThrottling(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.session.PreloadAsync(nil, sources("a.png", "b.png")))
	h.run(1)
	require.Equal(t, []string{"a.png"}, h.images.loads())

	require.NoError(t, h.session.Start(Request{Resume: true}))
	assert.True(t, h.session.Async(), "a running session keeps its mode")

	h.rate.set(10)
	h.run(2)
	assert.Equal(t, []string{"a.png"}, h.images.loads(), "slow frames are still skipped")
}

func TestSessionRestartDropsStaleSettles(t *testing.T) {
	h := newHarness(t, false)
	group := sources("a.png", "b.png")
	require.NoError(t, h.session.Preload(nil, group))
	h.run(1)
	require.Equal(t, 1, h.session.Submitted())

	stale := h.images.pending["a.png"]
	require.NoError(t, h.session.Preload(nil, group))
	assert.Equal(t, 0, h.session.Submitted())
	assert.Equal(t, 2, h.session.Total())
	assert.Equal(t, 1, h.frames.Len())

	stale(nil)
	h.run(1)
	assert.Equal(t, 0, h.session.Completed(), "settle from the replaced run is ignored")
	assert.Equal(t, 1, h.session.Submitted())
}

func TestSessionResumeWhenIdleRestarts(t *testing.T) {
	h := newHarness(t, true)
	calls := 0
	require.NoError(t, h.session.Preload(func(*Session) { calls++ }, sources("a.png", "b.png")))
	h.run(5)
	require.Equal(t, 1, calls)
	require.Equal(t, StateIdle, h.session.State())

	require.NoError(t, h.session.Resume(nil))
	assert.Equal(t, StateRunning, h.session.State())
	assert.Equal(t, 2, h.session.Total())
	assert.Equal(t, 0, h.session.Submitted())

	h.run(5)
	assert.Equal(t, 2, calls, "previous completion callback is kept")
	assert.Equal(t, []string{"a.png", "b.png", "a.png", "b.png"}, h.images.loads())
}

func TestSessionRejectsUnknownKindUpFront(t *testing.T) {
	h := newHarness(t, true)
	err := h.session.Preload(nil, sources("a.png", "level.dat?v=2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownKind)

	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dat", ce.Kind)
	assert.Equal(t, "level.dat?v=2", ce.Source)

	assert.Equal(t, StateIdle, h.session.State())
	assert.Equal(t, 0, h.frames.Len())
	h.run(3)
	assert.Empty(t, h.images.loads())
}

func TestSessionRejectsMissingHandlerUpFront(t *testing.T) {
	h := newHarness(t, true)
	err := h.session.Preload(nil, sources("music.mp3"))
	assert.ErrorIs(t, err, core.ErrNoHandler)
	assert.True(t, core.IsConfigurationError(err))
	assert.Equal(t, 0, h.frames.Len())
}

func TestSessionAbortsOnDispatchError(t *testing.T) {
	h := newHarness(t, true)
	boom := &core.ConfigurationError{Source: "b.txt", Kind: "text", Err: core.ErrNoHandler}
	h.texts.loadErr = boom

	var got error
	completions := 0
	err := h.session.Start(Request{
		Groups:     [][]assets.Descriptor{sources("a.png", "b.txt", "c.png")},
		OnComplete: func(*Session) { completions++ },
		OnError:    func(_ *Session, err error) { got = err },
	})
	require.NoError(t, err)

	h.run(10)
	assert.Equal(t, boom, got)
	assert.Equal(t, boom, h.session.Err())
	assert.Equal(t, 0, completions)
	assert.Equal(t, StateIdle, h.session.State())
	assert.Equal(t, 0, h.frames.Len())
	assert.Equal(t, []string{"a.png"}, h.images.loads(), "nothing after the failing entry is dispatched")
	assert.Less(t, h.session.Percentage(), 100)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.runs.WithLabelValues("aborted")))
}

func TestSessionIgnoresExtraSettles(t *testing.T) {
	h := newHarness(t, false)
	calls := 0
	require.NoError(t, h.session.Preload(func(*Session) { calls++ }, sources("a.png", "b.png")))
	h.run(1)

	h.session.Loaded("a.png")
	h.session.Loaded("a.png")
	h.run(1)
	assert.Equal(t, 1, h.session.Completed(), "second signal has no pending submission")
	assert.Equal(t, 2, h.session.Submitted())

	h.session.Failed("b.png", nil)
	h.run(1)
	assert.Equal(t, 1, calls)
}

func TestSessionSettleFuncOnlyCountsOnce(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.session.Preload(nil, sources("a.png", "b.png")))
	h.run(2)

	h.images.settle(t, "a.png", nil)
	h.images.settle(t, "a.png", nil)
	h.run(1)
	assert.Equal(t, 1, h.session.Completed())
}

func TestSessionCompletionMayStartNextRun(t *testing.T) {
	h := newHarness(t, true)
	var second error
	require.NoError(t, h.session.Preload(func(s *Session) {
		second = s.Preload(nil, sources("x.png", "y.png", "z.png"))
	}, sources("a.png")))

	h.run(2)
	require.NoError(t, second)
	assert.Equal(t, StateRunning, h.session.State())
	assert.Equal(t, 3, h.session.Total(), "the finished run must not clobber the new one")
	assert.Equal(t, 1, h.frames.Len())
}

type scene struct {
	got   *Session
	calls int
}

func (s *scene) Done(sess *Session) {
	s.got = sess
	s.calls++
}

func (s *scene) Wrong(int) {}

func TestMethodTarget(t *testing.T) {
	sc := &scene{}
	cb, err := MethodTarget(sc, "Done")
	require.NoError(t, err)

	h := newHarness(t, true)
	require.NoError(t, h.session.Preload(cb, sources("a.png")))
	h.run(3)
	assert.Equal(t, 1, sc.calls)
	assert.Same(t, h.session, sc.got)

	_, err = MethodTarget(sc, "Missing")
	assert.Error(t, err)
	_, err = MethodTarget(sc, "Wrong")
	assert.Error(t, err)
	_, err = MethodTarget(nil, "Done")
	assert.Error(t, err)
}

func TestSessionRelease(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.session.Release(sources("a.png", "b.txt")))
	assert.Equal(t, []string{"a.png"}, h.images.unloaded)
	assert.Equal(t, []string{"b.txt"}, h.texts.unloaded)

	err := h.session.Release(sources("c.png", "d.wav", "e.png"))
	assert.ErrorIs(t, err, core.ErrNoHandler)
	assert.Equal(t, []string{"a.png", "c.png"}, h.images.unloaded, "release stops at the first configuration error")
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	_, err := NewSession(SessionConfig{Ticks: NewFrameScheduler()})
	assert.Error(t, err)
	_, err = NewSession(SessionConfig{Dispatch: NewDispatchTable(Subsystems{})})
	assert.Error(t, err)

	s, err := NewSession(SessionConfig{Dispatch: NewDispatchTable(Subsystems{}), Ticks: NewFrameScheduler()})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 100, s.Percentage())
}

func TestSessionOnTimerScheduler(t *testing.T) {
	table := NewDispatchTable(Subsystems{})
	images := newFakeHandler(true)
	require.NoError(t, table.Register(assets.KindImage, images))

	ticks := NewTimerScheduler()
	defer ticks.Close()
	s, err := NewSession(SessionConfig{Dispatch: table, Ticks: ticks, Interval: DefaultInterval / 4})
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, s.Preload(func(*Session) { close(done) }, sources("a.png", "b.png", "c.png")))

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, DefaultInterval)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, images.loads())
}
