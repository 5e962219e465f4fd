package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

func captureContext() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), &buf
}

func TestRun_CapturesAndRedacts(t *testing.T) {
	ctx, logs := captureContext()

	res, err := Run(ctx, "/bin/sh", []string{"-c", `echo "token=$TOKEN"; echo oops >&2`},
		WithEnv([]string{"TOKEN=pypi-secret"}),
		WithRedact("pypi-secret"),
	)
	require.NoError(t, err)
	assert.Equal(t, "token=***\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.NotContains(t, logs.String(), "pypi-secret")
	assert.Contains(t, logs.String(), "token=***")
	assert.Contains(t, logs.String(), "stream=stderr")
}

func TestRun_EnvironmentIsExact(t *testing.T) {
	t.Setenv("LEAKED_FROM_PARENT", "yes")
	ctx, _ := captureContext()

	res, err := Run(ctx, "/bin/sh", []string{"-c", `echo "[$LEAKED_FROM_PARENT]"`}, WithEnv([]string{"A=1"}))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", res.Stdout)
}

func TestRun_ExitError(t *testing.T) {
	ctx, _ := captureContext()

	res, err := Run(ctx, "/bin/sh", []string{"-c", "echo failing build >&2; exit 3"}, Quiet())
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "failing build")
}

func TestRun_MissingBinary(t *testing.T) {
	ctx, _ := captureContext()
	_, err := Run(ctx, "/definitely/not/here", nil)
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestLineWriter_SplitsLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(slog.New(slog.NewTextHandler(&buf, nil)), "stdout", nil)

	_, _ = w.Write([]byte("first\nsec"))
	_, _ = w.Write([]byte("ond\n\nthird"))
	w.Flush()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "stream=stdout"))
	assert.Contains(t, out, "msg=second")
	assert.Contains(t, out, "msg=third")
}
