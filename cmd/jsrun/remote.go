package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/GriffinCanCode/jsrun/internal/client"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Base URL of the jsrun server",
		Value:   client.DefaultConfig().BaseURL,
		Sources: cli.EnvVars("JSRUN_SERVER"),
	}
}

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:      "remote",
		Usage:     "Post a snippet file to a running server and print the payload",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Request timeout",
				Value:   client.DefaultConfig().Timeout,
			},
			prettyFlag(),
		},
		Action: remoteAction,
	}
}

func remoteAction(ctx context.Context, cmd *cli.Command) error {
	src, err := readSource(cmd)
	if err != nil {
		return err
	}

	c := client.New(client.Config{
		BaseURL: cmd.String("server"),
		Timeout: cmd.Duration("timeout"),
		Retries: client.DefaultConfig().Retries,
	})
	res, err := c.Run(ctx, src)
	if err != nil {
		return err
	}
	if err := printRaw(cmd, res.Raw); err != nil {
		return err
	}
	if !res.OK {
		return errSnippetFailed
	}
	return nil
}
