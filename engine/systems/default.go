package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
)

var ErrDefaultConfigured = errors.New("default session already created")

var (
	defaultOnce    sync.Once
	defaultMu      sync.Mutex
	defaultConfig  *SessionConfig
	defaultSession *Session
	defaultErr     error
)

// ConfigureDefault sets the configuration the default session is created
// with. It must be called before the first use of the default session.
func ConfigureDefault(cfg SessionConfig) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSession != nil {
		return ErrDefaultConfigured
	}
	defaultConfig = &cfg
	return nil
}

// Default returns the process-wide session, creating it on first use. Without
// ConfigureDefault it gets an empty dispatch table and a wall-clock tick source.
func Default() (*Session, error) {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()

		cfg := SessionConfig{}
		if defaultConfig != nil {
			cfg = *defaultConfig
		}
		if cfg.Dispatch == nil {
			cfg.Dispatch = NewDispatchTable(Subsystems{})
		}
		if cfg.Ticks == nil {
			cfg.Ticks = NewTimerScheduler()
		}
		defaultSession, defaultErr = NewSession(cfg)
		if defaultErr == nil {
			core.LogDebug("default preload session %s created", defaultSession.ID())
		}
	})
	return defaultSession, defaultErr
}

// existingDefault returns the default session without creating it.
func existingDefault() *Session {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultSession
}

// Preload runs a synchronous-mode preload on the default session.
func Preload(onComplete CompletionFunc, groups ...[]assets.Descriptor) (*Session, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	return s, s.Preload(onComplete, groups...)
}

// PreloadAsync runs a throttled preload on the default session.
func PreloadAsync(onComplete CompletionFunc, groups ...[]assets.Descriptor) (*Session, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	return s, s.PreloadAsync(onComplete, groups...)
}

// PurgeCachedData releases descs through the default session. Nothing was
// cached when no default session exists yet.
func PurgeCachedData(descs []assets.Descriptor) error {
	s := existingDefault()
	if s == nil {
		return nil
	}
	return s.Release(descs)
}

// Percentage of the default session, 100 when it was never used.
func Percentage() int {
	s := existingDefault()
	if s == nil {
		return 100
	}
	return s.Percentage()
}

// ResourceExists reports whether the default session ever submitted key.
func ResourceExists(key string) bool {
	s := existingDefault()
	if s == nil {
		return false
	}
	return s.Exists(key)
}

// resetDefault drops the default session. Tests only.
func resetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce = sync.Once{}
	defaultConfig = nil
	defaultSession = nil
	defaultErr = nil
}
