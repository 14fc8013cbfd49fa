package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

type Stage uint8

const (
	// Host is in an uninitialized state
	HostStageUninitialized Stage = iota
	// Host is currently initializing
	HostStageInitializing
	// Host initialization is complete
	HostStageInitialized
	// Host is currently running
	HostStageRunning
	// Host is in the process of shutting down
	HostStageShuttingDown
	// Host has shut down
	HostStageShutdown
)

// Host owns the frame loop. Every frame it advances the frame scheduler, so
// preload sessions built on Frames() step in lockstep with the game, and it
// feeds the frame metrics async sessions throttle on.
type Host struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  atomic.Bool
	clock        *core.Clock
	metrics      *core.FrameMetrics
	frames       *systems.FrameScheduler
	lastTime     time.Duration
	targetFrame  time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

func New(g *Game) (*Host, error) {
	if g == nil {
		return nil, errors.New("host needs a game")
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{}
	}
	rate := g.ApplicationConfig.TargetFrameRate
	if rate <= 0 {
		rate = DefaultTargetFrameRate
	}

	return &Host{
		currentStage: HostStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		frames:       systems.NewFrameScheduler(),
		targetFrame:  time.Duration(float64(time.Second) / rate),
		now:          time.Now,
		sleep:        time.Sleep,
	}, nil
}

func (h *Host) Initialize() error {
	h.currentStage = HostStageInitializing

	cfg := h.gameInstance.ApplicationConfig
	if cfg.LogLevel != "" {
		if err := core.SetLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	if h.gameInstance.FnInitialize != nil {
		if err := h.gameInstance.FnInitialize(h); err != nil {
			core.LogError("game initialization failed: %s", err.Error())
			return err
		}
	}

	h.currentStage = HostStageInitialized
	core.LogInfo("%s initialized, targeting %s per frame", cfg.Name, h.targetFrame)
	return nil
}

// Run drives frames until Stop is called, ctx is done or the game update fails.
func (h *Host) Run(ctx context.Context) error {
	if h.currentStage != HostStageInitialized {
		return errors.New("host must be initialized before running")
	}
	h.currentStage = HostStageRunning
	h.isRunning.Store(true)

	h.clock.Start()
	h.clock.Update()
	h.lastTime = h.clock.Elapsed()

	for h.isRunning.Load() {
		if ctx.Err() != nil {
			h.isRunning.Store(false)
			break
		}

		if h.isSuspended.Load() {
			h.sleep(h.targetFrame)
			continue
		}

		// Update clock and get delta time.
		h.clock.Update()
		currentTime := h.clock.Elapsed()
		delta := currentTime - h.lastTime
		frameStart := h.now()

		h.frames.Update(delta)

		if h.gameInstance.FnUpdate != nil {
			if err := h.gameInstance.FnUpdate(h, delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err.Error())
				h.isRunning.Store(false)
				return err
			}
		}

		// Figure out how long the frame took and give the rest back to the OS.
		remaining := h.targetFrame - h.now().Sub(frameStart)
		if remaining > 0 && h.gameInstance.ApplicationConfig.LimitFrames {
			h.sleep(remaining)
		}

		h.metrics.Update(delta)
		h.lastTime = currentTime
	}
	return nil
}

// Stop ends the loop after the current frame. Safe from any goroutine.
func (h *Host) Stop() {
	h.isRunning.Store(false)
}

// Suspend pauses frame updates without leaving the loop.
func (h *Host) Suspend(suspended bool) {
	h.isSuspended.Store(suspended)
}

func (h *Host) Shutdown() error {
	h.Stop()
	h.currentStage = HostStageShuttingDown
	var err error
	if h.gameInstance.FnShutdown != nil {
		err = h.gameInstance.FnShutdown()
	}
	h.clock.Stop()
	h.currentStage = HostStageShutdown
	return err
}

func (h *Host) Stage() Stage {
	return h.currentStage
}

// Frames is the tick source advanced once per frame.
func (h *Host) Frames() *systems.FrameScheduler {
	return h.frames
}

// Metrics reports the measured frame rate.
func (h *Host) Metrics() *core.FrameMetrics {
	return h.metrics
}

func (h *Host) Game() *Game {
	return h.gameInstance
}
