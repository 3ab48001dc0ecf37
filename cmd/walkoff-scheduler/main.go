package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ev1stensberg/walkoff/internal/version"
	"github.com/urfave/cli"
	_ "time/tzdata"
)

const description = `walkoff-scheduler keeps scheduled tasks in sync with a live cron registry.
A task groups workflows under one trigger (date, interval or cron) and fires
each of them when the trigger is due.

Without a command the interactive TUI is launched.`

var configFlag = cli.StringFlag{
	Name:   "config, c",
	Usage:  "path to a yaml config file (default: $WALKOFF_DATA/config.yaml)",
	EnvVar: "WALKOFF_CONFIG",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "walkoff-scheduler"
	app.HelpName = "walkoff-scheduler"
	app.Usage = "schedule workflow runs on date, interval and cron triggers"
	app.UsageText = "walkoff-scheduler [--config FILE] <command> [arguments...]"
	app.Description = description
	app.Version = version.Version
	app.Flags = []cli.Flag{configFlag}
	app.Action = tuiAction
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the scheduler with the HTTP API",
			Action: serveAction,
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{
					Name:  "addr",
					Usage: "listen address, overrides server.addr",
				},
			},
		},
		{
			Name:   "daemon",
			Usage:  "run the scheduler in the foreground without the API",
			Action: daemonAction,
			Flags:  []cli.Flag{configFlag},
		},
		{
			Name:   "tui",
			Usage:  "launch the interactive TUI",
			Action: tuiAction,
			Flags:  []cli.Flag{configFlag},
		},
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "prints version information",
			Action: func(c *cli.Context) error {
				fmt.Printf("%s %s (%s_%s)\n", app.Name, version.Version, runtime.GOOS, runtime.GOARCH)
				return nil
			},
		},
	}
	app.HideVersion = true
	return app
}

// configPath prefers the command's flag over the global one
func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return c.GlobalString("config")
}
