package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	api "github.com/GriffinCanCode/jsrun/internal/api/http"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsrun/internal/sandbox"
	"github.com/GriffinCanCode/jsrun/internal/sandbox/modules"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a snippet file in a local sandbox and print the /run payload",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "examples",
				Aliases: []string{"e"},
				Usage:   "Directory searched first for relative require()",
				Value:   "examples",
				Sources: cli.EnvVars("EXAMPLES_DIR"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Interrupt the snippet after this long (0 = never)",
				Sources: cli.EnvVars("EXEC_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "no-host-modules",
				Usage:   "Reject bare require() specifiers",
				Sources: cli.EnvVars("JSRUN_NO_HOST_MODULES"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Echo console output to stdout/stderr as it happens",
				Sources: cli.EnvVars(config.VerboseEnvVars...),
			},
			prettyFlag(),
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	src, err := readSource(cmd)
	if err != nil {
		return err
	}

	resolver, err := modules.NewResolver(modules.Config{
		ExamplesDir:        cmd.String("examples"),
		HostModulesEnabled: !cmd.Bool("no-host-modules"),
	})
	if err != nil {
		return err
	}

	var mirror sandbox.Mirror
	if cmd.Bool("verbose") {
		mirror = logging.NewConsoleMirror(true)
	}
	exec := sandbox.NewExecutor(
		sandbox.NewBuilder(resolver, mirror, nil),
		sandbox.WithTimeout(cmd.Duration("timeout")),
	)

	res, err := exec.Execute(ctx, src)
	var execErr *sandbox.ExecutionError
	switch {
	case err == nil:
		return printPayload(cmd, api.RunResponse{OK: true, Result: res.Value, Logs: res.Logs})
	case errors.As(err, &execErr) && res != nil:
		if perr := printPayload(cmd, api.ErrorResponse{Error: execErr.Error(), Logs: &res.Logs}); perr != nil {
			return perr
		}
		return errSnippetFailed
	default:
		return err
	}
}
