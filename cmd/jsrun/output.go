package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"
)

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "pretty",
		Aliases: []string{"p"},
		Usage:   "Indent the printed payload",
	}
}

// readSource reads a snippet from the first argument, or stdin for "-".
func readSource(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() < 1 {
		return "", fmt.Errorf("snippet file path required (use - for stdin)")
	}
	path := cmd.Args().First()

	var (
		src []byte
		err error
	)
	if path == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read snippet: %w", err)
	}
	return string(src), nil
}

// printRaw prints an already encoded payload unchanged, indenting it on
// request.
func printRaw(cmd *cli.Command, raw json.RawMessage) error {
	if cmd.Bool("pretty") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("failed to indent payload: %w", err)
		}
		raw = buf.Bytes()
	}
	_, err := fmt.Fprintln(cmd.Root().Writer, string(raw))
	return err
}

func printPayload(cmd *cli.Command, payload interface{}) error {
	var (
		out []byte
		err error
	)
	if cmd.Bool("pretty") {
		out, err = sonic.MarshalIndent(payload, "", "  ")
	} else {
		out, err = sonic.Marshal(payload)
	}
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
	return err
}
