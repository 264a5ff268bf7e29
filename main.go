package main

import (
	"os"

	"github.com/robmorgan/lightplan/config"
	"github.com/robmorgan/lightplan/logger"
	"github.com/urfave/cli"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	logLevel   string

	globalFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "path to a YAML config file",
			EnvVar:      "LIGHTPLAN_CONFIG",
			Destination: &configPath,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "info, error or debug (overrides the config file)",
			Destination: &logLevel,
		},
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.GetProjectLogger().Error(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "lightplan"
	app.HelpName = "lightplan"
	app.Usage = "Fire a light plan into a stream's chat in sync with the broadcast."
	app.UsageText = "lightplan [global options] <command> [arguments...]"
	app.Version = Version
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "run a light plan",
			ArgsUsage: "<plan file>",
			Action:    runPlan,
			Flags:     runFlags,
		},
		{
			Name:      "check",
			Usage:     "print the firing schedule of a light plan",
			ArgsUsage: "<plan file>",
			Action:    checkPlan,
			Flags:     checkFlags,
		},
		{
			Name:   "calibrate",
			Usage:  "measure the stream delay",
			Action: calibrateDelay,
			Flags:  calibrateFlags,
		},
	}
	return app
}

// loadConfig reads the config file and applies the log level.
func loadConfig() (config.Config, error) {
	// initiailze the global config
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	logger.SetLevel(lvl)
	return cfg, nil
}
