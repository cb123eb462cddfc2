package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags
var Version = "dev"

// errSnippetFailed marks a snippet that threw; the payload is already printed.
var errSnippetFailed = errors.New("snippet failed")

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "jsrun",
		Version: Version,
		Usage:   "Run JavaScript snippets locally or against a jsrun server",
		Commands: []*cli.Command{
			runCommand(),
			remoteCommand(),
			healthCommand(),
			{
				Name:  "version",
				Usage: "Print the version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "jsrun version %s\n", cmd.Root().Version)
					return nil
				},
			},
		},
	}
}

func main() {
	err := newApp().Run(context.Background(), os.Args)
	switch {
	case err == nil:
	case errors.Is(err, errSnippetFailed):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
