package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/hubsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := newApp(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		runner.Fail(ctx, err)
		runner.Close()
		os.Exit(1)
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "hubsync",
		Usage:   "Synchronize HubSpot contacts into MailerLite subscribers",
		Version: "0.1.0",
		Writer:  runner.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}
}
