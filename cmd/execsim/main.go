// Command execsim runs a hosted simulation of a small firmware: a thread-mode
// executor blinking virtual LEDs, and an interrupt-mode executor, dispatched
// by a software interrupt line, reacting to a simulated button.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "execsim",
		Short: "Simulate thread-mode and interrupt-mode executors",
		Long: `execsim runs a thread-mode executor with periodic blink tasks, alongside an
interrupt-mode executor driven by a software interrupt controller, for a fixed
duration, then reports what each executor did.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if configPath != `` {
				var err error
				if cfg, err = LoadConfig(configPath); err != nil {
					return err
				}
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSimulation(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	defaults := DefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&configPath, `config`, `c`, ``, `path to a TOML config file`)
	flags.Duration(`duration`, defaults.Duration, `how long to run the simulation`)
	flags.String(`log-level`, defaults.LogLevel, `log level (emerg|alert|crit|err|warning|notice|info|debug|trace|disabled)`)
	flags.Bool(`metrics`, defaults.Metrics, `collect and report executor metrics`)
	flags.Int(`blinkers`, defaults.Thread.Blinkers, `number of blink tasks on the thread-mode executor`)
	flags.Duration(`blink-period`, defaults.Thread.Period, `blink period`)
	flags.String(`idle`, defaults.Thread.Idle, `thread-mode idle hook (event|busy|eventfd)`)
	flags.Duration(`button-interval`, defaults.Button.Interval, `interval between simulated button presses`)

	return cmd
}

// applyFlags overlays explicitly set flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed(`duration`) {
		if cfg.Duration, err = flags.GetDuration(`duration`); err != nil {
			return err
		}
	}
	if flags.Changed(`log-level`) {
		if cfg.LogLevel, err = flags.GetString(`log-level`); err != nil {
			return err
		}
	}
	if flags.Changed(`metrics`) {
		if cfg.Metrics, err = flags.GetBool(`metrics`); err != nil {
			return err
		}
	}
	if flags.Changed(`blinkers`) {
		if cfg.Thread.Blinkers, err = flags.GetInt(`blinkers`); err != nil {
			return err
		}
	}
	if flags.Changed(`blink-period`) {
		if cfg.Thread.Period, err = flags.GetDuration(`blink-period`); err != nil {
			return err
		}
	}
	if flags.Changed(`idle`) {
		if cfg.Thread.Idle, err = flags.GetString(`idle`); err != nil {
			return err
		}
	}
	if flags.Changed(`button-interval`) {
		if cfg.Button.Interval, err = flags.GetDuration(`button-interval`); err != nil {
			return err
		}
	}
	return nil
}
