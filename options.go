// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package executor

// executorOptions holds configuration options for executor creation.
type executorOptions struct {
	logger      *Logger
	idle        IdleHook
	alarm       Alarm
	fatal       func(err error)
	name        string
	metrics     bool
	strictSpawn bool
}

// --- Executor Options ---

// Option configures an Executor or InterruptExecutor instance.
type Option interface {
	applyExecutor(*executorOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyExecutorFunc func(*executorOptions) error
}

func (o *optionImpl) applyExecutor(opts *executorOptions) error {
	return o.applyExecutorFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger disables logging,
// which is the default.
func WithLogger(logger *Logger) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithIdleHook sets the idle hook of a thread-mode Executor. The hook's Pend
// method is the executor's wake signal. Defaults to NewEventIdle().
// Ignored by InterruptExecutor, which is woken by its interrupt.
func WithIdleHook(hook IdleHook) Option {
	return &optionImpl{func(opts *executorOptions) error {
		if hook == nil {
			return errNilOption(`WithIdleHook`)
		}
		opts.idle = hook
		return nil
	}}
}

// WithAlarm sets the alarm used by an InterruptExecutor to pend its own
// interrupt at the next timer deadline. Defaults to NewSoftAlarm().
// Ignored by the thread-mode Executor, whose idle hook honors deadlines.
func WithAlarm(alarm Alarm) Option {
	return &optionImpl{func(opts *executorOptions) error {
		if alarm == nil {
			return errNilOption(`WithAlarm`)
		}
		opts.alarm = alarm
		return nil
	}}
}

// WithMetrics enables runtime metrics collection.
// When enabled, metrics can be accessed via the Metrics method.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithFatalHandler replaces the handler invoked on invariant violations
// and, unless WithStrictSpawn(false), on spawn errors. The default logs at the
// emergency level and panics. A replacement that returns lets the poll
// loop skip the offending task and continue, which is only appropriate in
// tests.
func WithFatalHandler(fn func(err error)) Option {
	return &optionImpl{func(opts *executorOptions) error {
		if fn == nil {
			return errNilOption(`WithFatalHandler`)
		}
		opts.fatal = fn
		return nil
	}}
}

// WithStrictSpawn controls whether spawn errors (double spawn, stale token,
// wrong context) are escalated to the fatal handler, in addition to being
// returned. It is enabled by default, as a failed spawn is a programming
// error; disabling it leaves the caller to handle the returned
// *SpawnError.
func WithStrictSpawn(enabled bool) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.strictSpawn = enabled
		return nil
	}}
}

// WithName sets a name for the executor, used in logs.
func WithName(name string) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.name = name
		return nil
	}}
}

// resolveOptions applies Option instances to executorOptions.
func resolveOptions(opts []Option) (*executorOptions, error) {
	cfg := &executorOptions{strictSpawn: true}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyExecutor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Pool Options ---

// poolOptions holds configuration options for Pool creation.
type poolOptions struct {
	logger *Logger
	name   string
}

// PoolOption configures a Pool.
type PoolOption interface {
	applyPool(*poolOptions)
}

type poolOptionImpl struct {
	applyPoolFunc func(*poolOptions)
}

func (o *poolOptionImpl) applyPool(opts *poolOptions) {
	o.applyPoolFunc(opts)
}

// WithPoolName names the pool; task names are derived from it.
func WithPoolName(name string) PoolOption {
	return &poolOptionImpl{func(opts *poolOptions) {
		opts.name = name
	}}
}

// WithPoolLogger attaches a structured logger, used to report exhaustion.
func WithPoolLogger(logger *Logger) PoolOption {
	return &poolOptionImpl{func(opts *poolOptions) {
		opts.logger = logger
	}}
}

func resolvePoolOptions(opts []PoolOption) *poolOptions {
	cfg := &poolOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyPool(cfg)
		}
	}
	return cfg
}
