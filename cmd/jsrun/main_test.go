package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsrun/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/server"
	"github.com/GriffinCanCode/jsrun/internal/testutil"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{"jsrun"}, args...))
	return strings.TrimSpace(out.String()), err
}

func TestRunCommand(t *testing.T) {
	examples, work := testutil.ModuleDirs(t)
	testutil.WriteFile(t, examples, "greet.js", "module.exports = function (n) { return 'hello ' + n };")

	t.Run("success", func(t *testing.T) {
		file := testutil.WriteFile(t, work, "ok.js", "console.info('running'); require('./greet')('jsrun')")
		out, err := runApp(t, "run", "--examples", examples, file)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true,"result":"hello jsrun","logs":[{"level":"info","message":"running"}]}`, out)
	})

	t.Run("snippet throws", func(t *testing.T) {
		file := testutil.WriteFile(t, work, "bad.js", "console.log('before'); throw new Error('nope')")
		out, err := runApp(t, "run", "--examples", examples, file)
		assert.ErrorIs(t, err, errSnippetFailed)
		assert.Contains(t, out, `"ok":false`)
		assert.Contains(t, out, "nope | stack: ")
		assert.Contains(t, out, `"message":"before"`)
	})

	t.Run("timeout", func(t *testing.T) {
		file := testutil.WriteFile(t, work, "spin.js", "for (;;) {}")
		out, err := runApp(t, "run", "--timeout", "50ms", file)
		assert.ErrorIs(t, err, errSnippetFailed)
		assert.Contains(t, out, "execution timeout exceeded")
	})

	t.Run("host modules disabled", func(t *testing.T) {
		file := testutil.WriteFile(t, work, "host.js", "require('os').platform()")
		out, err := runApp(t, "run", "--no-host-modules", file)
		assert.ErrorIs(t, err, errSnippetFailed)
		assert.Contains(t, out, "host modules are disabled")
	})

	t.Run("pretty", func(t *testing.T) {
		file := testutil.WriteFile(t, work, "obj.js", "({a: 1})")
		out, err := runApp(t, "run", "--pretty", file)
		require.NoError(t, err)
		assert.Contains(t, out, "\n")
		assert.JSONEq(t, `{"ok":true,"result":{"a":1},"logs":[]}`, out)
	})

	t.Run("missing file argument", func(t *testing.T) {
		_, err := runApp(t, "run")
		assert.ErrorContains(t, err, "snippet file path required")
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := runApp(t, "run", work+"/does-not-exist.js")
		assert.ErrorContains(t, err, "failed to read snippet")
	})
}

func TestRemoteAndHealthCommands(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.ExamplesDir = t.TempDir()
	logger, _ := testutil.ObservedLogger(t)
	s, err := server.New(cfg, server.WithLogger(logging.Wrap(logger)))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
	})

	work := t.TempDir()

	out, err := runApp(t, "health", "--server", ts.URL)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+" is healthy", out)

	out, err = runApp(t, "health", "--wait", "--attempts", "3", "--interval", "1ms", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "is healthy")

	file := testutil.WriteFile(t, work, "sum.js", "[1, 2, 3].reduce(function (a, b) { return a + b }, 0)")
	out, err = runApp(t, "remote", "--server", ts.URL, file)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"result":6,"logs":[]}`, out)

	file = testutil.WriteFile(t, work, "throw.js", "throw new RangeError('out of range')")
	out, err = runApp(t, "remote", "--server", ts.URL, file)
	assert.ErrorIs(t, err, errSnippetFailed)
	assert.Contains(t, out, "out of range")
}

func TestHealthCommandUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, err := runApp(t, "health", "--server", url)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "jsrun version dev", out)
}
