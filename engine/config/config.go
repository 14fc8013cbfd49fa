package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultTickInterval is the nominal animation interval, 1/60 s.
	DefaultTickInterval = 1.0 / 60.0
	// DefaultMinFrameRate is the frame rate under which async preloads skip a tick.
	DefaultMinFrameRate = 20.0
	// DefaultStartDelay matches the loading scene's wait before it starts preloading.
	DefaultStartDelay = 0.3
)

/** @brief Logging configuration */
type LogConfig struct {
	Level string `toml:"level"`
}

/** @brief Where assets live on disk and whether changes are watched */
type AssetsConfig struct {
	/** @brief The relative base path for assets. */
	BasePath string `toml:"base_path"`
	/** @brief Evict cached files when they change on disk. */
	Watch bool `toml:"watch"`
}

/** @brief Preload scheduler tuning */
type PreloadConfig struct {
	/** @brief Seconds between two preload steps. */
	TickInterval float64 `toml:"tick_interval"`
	/** @brief Async preloads skip ticks while the frame rate is below this. */
	MinFrameRate float64 `toml:"min_frame_rate"`
	/** @brief Seconds the loading overlay waits before it starts the preload. */
	StartDelay float64 `toml:"start_delay"`
}

/** @brief Background decode worker pool */
type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Assets  AssetsConfig  `toml:"assets"`
	Preload PreloadConfig `toml:"preload"`
	Jobs    JobsConfig    `toml:"jobs"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			BasePath: ".",
		},
		Preload: PreloadConfig{
			TickInterval: DefaultTickInterval,
			MinFrameRate: DefaultMinFrameRate,
			StartDelay:   DefaultStartDelay,
		},
		Jobs: JobsConfig{
			Workers:   4,
			QueueSize: 64,
		},
	}
}

// Load reads a TOML file on top of the defaults. A missing file is not an
// error: the defaults are returned as they are.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Parse(data, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML into c and validates the result.
func Parse(data []byte, c *Config) error {
	if err := toml.Unmarshal(data, c); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Preload.TickInterval <= 0 {
		return fmt.Errorf("preload.tick_interval must be > 0, got %v", c.Preload.TickInterval)
	}
	if c.Preload.MinFrameRate < 0 {
		return fmt.Errorf("preload.min_frame_rate must be >= 0, got %v", c.Preload.MinFrameRate)
	}
	if c.Preload.StartDelay < 0 {
		return fmt.Errorf("preload.start_delay must be >= 0, got %v", c.Preload.StartDelay)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0, got %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("jobs.queue_size must be >= 0, got %d", c.Jobs.QueueSize)
	}
	return nil
}

func (c *Config) TickInterval() time.Duration {
	return seconds(c.Preload.TickInterval)
}

func (c *Config) StartDelay() time.Duration {
	return seconds(c.Preload.StartDelay)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
