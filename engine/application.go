package engine

const DefaultTargetFrameRate = 60.0

type ApplicationConfig struct {
	// The application name used in logs.
	Name string
	// One of debug, info, warn, error. Left untouched when empty.
	LogLevel string
	// Frames per second the host loop aims for.
	TargetFrameRate float64
	// Sleep away the rest of each frame instead of spinning.
	LimitFrames bool
}
