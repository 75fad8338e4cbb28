package main

import (
	"io"

	"github.com/urfave/cli/v2"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "itip",
		Usage:   "Process iTIP scheduling messages against a calendar",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"ITIP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			processCommand(),
			checkCommand(),
			serveMetricsCommand(),
		},
	}
}
