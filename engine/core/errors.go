package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when a descriptor's extension matches no known resource kind.
	ErrUnknownKind = errors.New("unknown resource kind")
	// ErrNoHandler is returned when a kind is known but nothing is registered to load it.
	ErrNoHandler = errors.New("no handler registered for resource kind")
	// ErrInvalidDescriptor is returned for descriptors with neither a source nor a font name.
	ErrInvalidDescriptor = errors.New("invalid resource descriptor")
	// ErrJobSystemClosed is returned when work is submitted after shutdown.
	ErrJobSystemClosed = errors.New("job system is shut down")
	ErrUnknown         = errors.New("unknown")
)

// ConfigurationError aborts a whole preload run. It means the caller asked for
// something the loader was never set up to handle.
type ConfigurationError struct {
	// Source is the descriptor key that triggered the error.
	Source string
	// Kind is the classified kind, or the raw extension for unknown kinds.
	Kind string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %q (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AssetLoadError is reported by an external loader when one asset fails.
// It never stops a run: the asset still counts as settled.
type AssetLoadError struct {
	Key string
	Err error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("failed loading resource %q: %v", e.Key, e.Err)
}

func (e *AssetLoadError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err, or anything it wraps, is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
