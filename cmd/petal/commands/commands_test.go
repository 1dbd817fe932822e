package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/cmd/petal/commands"
	"go.trai.ch/petal/internal/app"
	"go.trai.ch/petal/internal/build"
)

type mockApp struct {
	configureFunc func(logFormat, color string) error
	runFunc       func(ctx context.Context, opts app.RunOptions) error
	watchFunc     func(ctx context.Context, opts app.RunOptions) error
	keyOpts       *app.Options
	validateOpts  *app.Options
	statusOpts    *app.Options
	cleanOpts     *app.CleanOptions
}

func (m *mockApp) Configure(logFormat, color string) error {
	if m.configureFunc != nil {
		return m.configureFunc(logFormat, color)
	}
	return nil
}

func (m *mockApp) Run(ctx context.Context, opts app.RunOptions) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Watch(ctx context.Context, opts app.RunOptions) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Key(_ context.Context, opts app.Options) error {
	m.keyOpts = &opts
	return nil
}

func (m *mockApp) Validate(_ context.Context, opts app.Options) error {
	m.validateOpts = &opts
	return nil
}

func (m *mockApp) Status(_ context.Context, opts app.Options) error {
	m.statusOpts = &opts
	return nil
}

func (m *mockApp) Clean(_ context.Context, opts app.CleanOptions) error {
	m.cleanOpts = &opts
	return nil
}

func execute(t *testing.T, a commands.Application, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(a)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Run(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.RunOptions
		called := false

		mock := &mockApp{
			runFunc: func(_ context.Context, opts app.RunOptions) error {
				capturedOpts = opts
				called = true
				return nil
			},
		}

		_, err := execute(t, mock, "run",
			"--pipeline", "ci/petal.yaml",
			"--workspace", "/src/project",
			"--cache-dir", "/tmp/cache",
			"--event", "pull_request",
			"--branch", "main",
			"--no-cache",
		)
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, app.RunOptions{
			Options: app.Options{Pipeline: "ci/petal.yaml", Workspace: "/src/project", CacheDir: "/tmp/cache"},
			Event:   "pull_request",
			Branch:  "main",
			NoCache: true,
		}, capturedOpts)
	})

	t.Run("defaults to push on the current branch", func(t *testing.T) {
		var capturedOpts app.RunOptions
		mock := &mockApp{
			runFunc: func(_ context.Context, opts app.RunOptions) error {
				capturedOpts = opts
				return nil
			},
		}

		_, err := execute(t, mock, "run")
		require.NoError(t, err)
		assert.Equal(t, "push", capturedOpts.Event)
		assert.Empty(t, capturedOpts.Branch)
		assert.False(t, capturedOpts.NoCache)
	})

	t.Run("returns error on run failure", func(t *testing.T) {
		mock := &mockApp{
			runFunc: func(_ context.Context, _ app.RunOptions) error {
				return errors.New("simulated error")
			},
		}

		_, err := execute(t, mock, "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("rejects arguments", func(t *testing.T) {
		mock := &mockApp{
			runFunc: func(_ context.Context, _ app.RunOptions) error {
				panic("should not be called")
			},
		}

		_, err := execute(t, mock, "run", "build")
		require.Error(t, err)
	})
}

func TestCommands_GlobalFlags(t *testing.T) {
	var gotFormat, gotColor string
	mock := &mockApp{
		configureFunc: func(logFormat, color string) error {
			gotFormat, gotColor = logFormat, color
			return nil
		},
	}

	_, err := execute(t, mock, "validate", "--log-format", "json", "--color", "never")
	require.NoError(t, err)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "never", gotColor)
}

func TestCommands_ConfigureError(t *testing.T) {
	mock := &mockApp{
		configureFunc: func(string, string) error { return errors.New("invalid color mode") },
		runFunc: func(context.Context, app.RunOptions) error {
			panic("should not be called")
		},
	}

	_, err := execute(t, mock, "run", "--color", "sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color mode")
}

func TestCommands_Watch(t *testing.T) {
	var capturedOpts app.RunOptions
	mock := &mockApp{
		watchFunc: func(_ context.Context, opts app.RunOptions) error {
			capturedOpts = opts
			return nil
		},
	}

	_, err := execute(t, mock, "watch", "-b", "dev", "-n")
	require.NoError(t, err)
	assert.Equal(t, "dev", capturedOpts.Branch)
	assert.True(t, capturedOpts.NoCache)
}

func TestCommands_Inspection(t *testing.T) {
	mock := &mockApp{}

	_, err := execute(t, mock, "key", "-p", "ci.yaml")
	require.NoError(t, err)
	require.NotNil(t, mock.keyOpts)
	assert.Equal(t, "ci.yaml", mock.keyOpts.Pipeline)

	_, err = execute(t, mock, "validate", "-w", "/src")
	require.NoError(t, err)
	require.NotNil(t, mock.validateOpts)
	assert.Equal(t, "/src", mock.validateOpts.Workspace)

	_, err = execute(t, mock, "status")
	require.NoError(t, err)
	require.NotNil(t, mock.statusOpts)
}

func TestCommands_Clean(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		cache bool
		runs  bool
	}{
		{name: "defaults to everything", args: []string{"clean"}, cache: true, runs: true},
		{name: "cache only", args: []string{"clean", "--cache"}, cache: true},
		{name: "runs only", args: []string{"clean", "-r"}, runs: true},
		{name: "both flags", args: []string{"clean", "-c", "-r"}, cache: true, runs: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockApp{}
			_, err := execute(t, mock, tt.args...)
			require.NoError(t, err)
			require.NotNil(t, mock.cleanOpts)
			assert.Equal(t, tt.cache, mock.cleanOpts.Cache)
			assert.Equal(t, tt.runs, mock.cleanOpts.Runs)
		})
	}
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{
		configureFunc: func(string, string) error { return errors.New("not configured") },
	}

	out, err := execute(t, mock, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "petal version "+build.Version)
}
