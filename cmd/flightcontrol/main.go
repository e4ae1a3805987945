// Package main flies the flight controller against a simulated quad, either in real time with
// metrics and status served over HTTP or as a fast offline simulation.
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"go.viam.com/utils"

	"go.viam.com/flightcontrol/config"
	"go.viam.com/flightcontrol/logging"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagDuration = "duration"
	flagPlot     = "plot"
	flagDropAt   = "battery-drop-at"
)

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger("flightcontrol"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return newApp(logger).RunContext(ctx, args)
}

func newApp(logger logging.Logger) *cli.App {
	return &cli.App{
		Name:  "flightcontrol",
		Usage: "multirotor attitude stabilization and flight mode controller",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (.json, .yaml or .yml)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "fly the simulated quad in real time and serve /metrics, /status and /rearm",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after this long; zero runs until interrupted",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, logger)
					if err != nil {
						return err
					}
					return runCommand(c.Context, c, cfg, logger)
				},
			},
			{
				Name:  "simulate",
				Usage: "fly the demo script faster than real time and report the result",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "simulated flight time; defaults to sim.duration_sec from the config",
					},
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "write a plot of the flight to `FILE` (.png, .svg or .pdf)",
					},
					&cli.DurationFlag{
						Name:  flagDropAt,
						Usage: "drop the battery below the critical voltage at this flight time",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, logger)
					if err != nil {
						return err
					}
					return simulateCommand(c.Context, c, cfg, logger)
				},
			},
			{
				Name:  "check-config",
				Usage: "validate a configuration file and print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, logger)
					if err != nil {
						return err
					}
					return printConfig(c.App.Writer, cfg)
				},
			},
		},
	}
}

// loadConfig reads the --config file, or the defaults, and applies the log levels it names.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, errors.Wrap(err, "loading config")
		}
	}
	if err := logging.ApplyLevels(logger, baseLevel(c), cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func baseLevel(c *cli.Context) zapcore.Level {
	if c.Bool(flagDebug) {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
