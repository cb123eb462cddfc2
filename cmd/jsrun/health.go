package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/GriffinCanCode/jsrun/internal/client"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that a jsrun server answers /health",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Keep polling until the server is up",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Usage: "Retries when waiting",
				Value: 30,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Minimum wait between attempts",
				Value: 200 * time.Millisecond,
			},
		},
		Action: healthAction,
	}
}

func healthAction(ctx context.Context, cmd *cli.Command) error {
	c := client.New(client.Config{
		BaseURL:      cmd.String("server"),
		RetryWaitMin: cmd.Duration("interval"),
		RetryWaitMax: 4 * cmd.Duration("interval"),
	})

	var err error
	if cmd.Bool("wait") {
		err = c.WaitHealthy(ctx, int(cmd.Int("attempts")))
	} else {
		err = c.Health(ctx)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "%s is healthy\n", c.BaseURL())
	return err
}
