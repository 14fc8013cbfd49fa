package testbed

import (
	"errors"
	"time"

	"github.com/spaghettifunk/preloader/engine"
	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// LoadingGame is a headless loading scene: it waits a start delay, preloads
// its groups on the host's frame scheduler and stops the host once done.
type LoadingGame struct {
	*engine.Game
}

type Options struct {
	Name         string
	Dispatch     *systems.DispatchTable
	Groups       [][]assets.Descriptor
	Async        bool
	StartDelay   time.Duration
	Interval     time.Duration
	MinFrameRate float64
	Metrics      *systems.PreloadMetrics
	// Called once everything settled, before the host stops.
	OnComplete func(*systems.Session)
}

type gameState struct {
	opts     Options
	session  *systems.Session
	waited   time.Duration
	started  bool
	reported int
	done     bool
	err      error
}

func NewLoadingGame(opts Options) (*LoadingGame, error) {
	if opts.Dispatch == nil {
		return nil, errors.New("loading game needs a dispatch table")
	}
	if opts.Name == "" {
		opts.Name = "Preloader"
	}
	lg := &LoadingGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:            opts.Name,
				TargetFrameRate: engine.DefaultTargetFrameRate,
				LimitFrames:     true,
			},
			State: &gameState{opts: opts, reported: -1},
		},
	}

	lg.FnInitialize = lg.Initialize
	lg.FnUpdate = lg.Update

	return lg, nil
}

func (g *LoadingGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *LoadingGame) Initialize(h *engine.Host) error {
	state := g.state()
	s, err := systems.NewSession(systems.SessionConfig{
		Dispatch:     state.opts.Dispatch,
		Ticks:        h.Frames(),
		FrameRate:    h.Metrics(),
		Interval:     state.opts.Interval,
		MinFrameRate: state.opts.MinFrameRate,
		Metrics:      state.opts.Metrics,
	})
	if err != nil {
		return err
	}
	state.session = s
	core.LogDebug("loading scene ready, session %s", s.ID())
	return nil
}

func (g *LoadingGame) Update(h *engine.Host, delta time.Duration) error {
	state := g.state()

	if !state.started {
		state.waited += delta
		if state.waited < state.opts.StartDelay {
			return nil
		}
		state.started = true
		err := state.session.Start(systems.Request{
			Groups: state.opts.Groups,
			Async:  state.opts.Async,
			OnComplete: func(s *systems.Session) {
				state.done = true
				if state.opts.OnComplete != nil {
					state.opts.OnComplete(s)
				}
			},
			OnError: func(_ *systems.Session, err error) {
				state.err = err
			},
		})
		if err != nil {
			return err
		}
	}

	if state.err != nil {
		return state.err
	}

	if p := state.session.Percentage(); p != state.reported && !state.done {
		state.reported = p
		core.LogInfo("Loading... %d%%", p)
	}
	if state.done {
		core.LogInfo("Loading... 100%%")
		h.Stop()
	}
	return nil
}

// Session is nil until the host initialized the game.
func (g *LoadingGame) Session() *systems.Session {
	return g.state().session
}
