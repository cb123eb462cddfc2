// Package testutil provides testing utilities and helpers shared by package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/jsrun/internal/sandbox"
	"github.com/GriffinCanCode/jsrun/internal/sandbox/modules"
)

// MockRunner is a mock implementation of the run handler's Runner.
type MockRunner struct {
	mock.Mock
}

// Acquire mocks the Acquire method.
func (m *MockRunner) Acquire(ctx context.Context) (func(), error) {
	args := m.Called(ctx)
	release, _ := args.Get(0).(func())
	return release, args.Error(1)
}

// Build mocks the Build method.
func (m *MockRunner) Build() (*sandbox.Context, error) {
	args := m.Called()
	c, _ := args.Get(0).(*sandbox.Context)
	return c, args.Error(1)
}

// Run mocks the Run method.
func (m *MockRunner) Run(c *sandbox.Context, source string) (*sandbox.Result, error) {
	args := m.Called(c, source)
	res, _ := args.Get(0).(*sandbox.Result)
	return res, args.Error(1)
}

// NewMockRunner creates a runner whose Acquire succeeds by default.
func NewMockRunner(t *testing.T) *MockRunner {
	t.Helper()
	m := new(MockRunner)
	m.On("Acquire", mock.Anything).Return(func() {}, nil).Maybe()
	return m
}

// ObservedLogger returns a debug-level logger and the entries it records.
func ObservedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// ModuleDirs creates an examples directory and a separate working directory.
func ModuleDirs(t *testing.T) (examples, work string) {
	t.Helper()
	root := t.TempDir()
	examples = filepath.Join(root, "examples")
	work = filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(examples, 0o755))
	require.NoError(t, os.MkdirAll(work, 0o755))
	return examples, work
}

// WriteFile writes content to dir/name, creating parents, and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// NewResolver builds a resolver over the given bases with host modules on.
func NewResolver(t *testing.T, examples, work string, opts ...modules.Option) *modules.Resolver {
	t.Helper()
	r, err := modules.NewResolver(modules.Config{
		ExamplesDir:        examples,
		WorkDir:            work,
		HostModulesEnabled: true,
	}, opts...)
	require.NoError(t, err)
	return r
}

// NewExecutor builds an executor over a fresh resolver rooted at dir.
func NewExecutor(t *testing.T, dir string, opts ...sandbox.Option) *sandbox.Executor {
	t.Helper()
	return sandbox.NewExecutor(sandbox.NewBuilder(NewResolver(t, dir, dir), nil, nil), opts...)
}
