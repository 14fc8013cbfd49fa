package engine

import "time"

// Game is what the host drives. Every hook is optional.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

type Initialize func(h *Host) error
type Update func(h *Host, delta time.Duration) error
type Shutdown func() error
