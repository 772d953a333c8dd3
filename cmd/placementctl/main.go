// Command placementctl runs placement administration tasks against the database directly.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "placementctl",
		Usage: "administer the campus placement service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.yaml",
				Value:   "configs/config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "actor",
				Usage: "admin id recorded in freeze history and audit entries",
				Value: "placementctl",
			},
		},
		Commands: []*cli.Command{
			sweepCommand(),
			freezeCommand(),
			unfreezeCommand(),
			studentsCommand(),
			eligibilityCommand(),
			tokenCommand(),
		},
	}
}
