package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
)

// Config is the simulation configuration, loaded from TOML and overlaid by
// command line flags.
type Config struct {
	Duration  time.Duration   `toml:"duration"`
	LogLevel  string          `toml:"log_level"`
	Metrics   bool            `toml:"metrics"`
	Thread    ThreadConfig    `toml:"thread"`
	Interrupt InterruptConfig `toml:"interrupt"`
	Button    ButtonConfig    `toml:"button"`
}

// ThreadConfig configures the thread-mode executor and its blink tasks.
type ThreadConfig struct {
	Blinkers int           `toml:"blinkers"`
	Period   time.Duration `toml:"period"`
	Idle     string        `toml:"idle"`
}

// InterruptConfig configures the interrupt-mode executor.
type InterruptConfig struct {
	Priority  int           `toml:"priority"`
	Heartbeat time.Duration `toml:"heartbeat"`
}

// ButtonConfig configures the simulated button interrupt.
type ButtonConfig struct {
	Interval time.Duration `toml:"interval"`
}

const (
	idleEvent   = `event`
	idleBusy    = `busy`
	idleEventFD = `eventfd`
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Duration: 3 * time.Second,
		LogLevel: `info`,
		Metrics:  true,
		Thread: ThreadConfig{
			Blinkers: 3,
			Period:   250 * time.Millisecond,
			Idle:     idleEvent,
		},
		Interrupt: InterruptConfig{
			Priority:  1,
			Heartbeat: 500 * time.Millisecond,
		},
		Button: ButtonConfig{
			Interval: 400 * time.Millisecond,
		},
	}
}

// LoadConfig reads path over the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, `, `))
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Duration <= 0 {
		errs = append(errs, errors.New(`duration must be positive`))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Thread.Blinkers <= 0 {
		errs = append(errs, errors.New(`thread.blinkers must be positive`))
	}
	if c.Thread.Period <= 0 {
		errs = append(errs, errors.New(`thread.period must be positive`))
	}
	switch c.Thread.Idle {
	case idleEvent, idleBusy, idleEventFD:
	default:
		errs = append(errs, fmt.Errorf(`thread.idle must be one of %q, %q or %q, got %q`, idleEvent, idleBusy, idleEventFD, c.Thread.Idle))
	}
	if c.Interrupt.Heartbeat <= 0 {
		errs = append(errs, errors.New(`interrupt.heartbeat must be positive`))
	}
	if c.Button.Interval <= 0 {
		errs = append(errs, errors.New(`button.interval must be positive`))
	}
	return errors.Join(errs...)
}

// parseLevel maps a level keyword, as printed by logiface.Level.String, to
// its level.
func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l := logiface.LevelDisabled; l <= logiface.LevelTrace; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf(`unknown log level %q`, s)
}
