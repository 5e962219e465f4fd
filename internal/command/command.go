// Package command runs external tools for actions: build tools, runtime
// probes and upload clients. Output is captured and streamed line by line
// into the step logger with secret values masked.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

// Result of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Options configure a single invocation.
type Options struct {
	// Dir is the working directory.
	Dir string
	// Env is the complete environment of the child. Nothing is inherited
	// from the parent process.
	Env []string
	// Stdin is fed to the child when set.
	Stdin io.Reader
	// Redact lists values replaced by *** in captured and logged output.
	Redact []string
	// Quiet disables streaming output into the logger.
	Quiet bool
}

// Option mutates Options.
type Option func(*Options)

func WithDir(dir string) Option { return func(o *Options) { o.Dir = dir } }

func WithEnv(env []string) Option { return func(o *Options) { o.Env = env } }

func WithStdin(r io.Reader) Option { return func(o *Options) { o.Stdin = r } }

func WithRedact(values ...string) Option {
	return func(o *Options) { o.Redact = append(o.Redact, values...) }
}

func Quiet() Option { return func(o *Options) { o.Quiet = true } }

// Run executes name with args and waits for it. A non-zero exit yields an
// *ExitError together with the captured Result; failures to start yield a
// plain wrapped error.
func Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	logger := ctxlog.FromContext(ctx)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = o.Dir
	cmd.Env = o.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Stdin = o.Stdin

	redactor := NewRedactor(o.Redact...)
	var stdout, stderr bytes.Buffer
	stdoutW, stderrW := io.Writer(&stdout), io.Writer(&stderr)
	var streams []*LineWriter
	if !o.Quiet {
		outLog := NewLineWriter(logger, "stdout", redactor)
		errLog := NewLineWriter(logger, "stderr", redactor)
		streams = append(streams, outLog, errLog)
		stdoutW = io.MultiWriter(&stdout, outLog)
		stderrW = io.MultiWriter(&stderr, errLog)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	logger.Debug("Running command.", "command", name, "args", redactor.Apply(strings.Join(args, " ")), "dir", o.Dir)
	err := cmd.Run()
	for _, s := range streams {
		s.Flush()
	}

	res := &Result{
		Stdout: redactor.Apply(stdout.String()),
		Stderr: redactor.Apply(stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if ctx.Err() != nil {
				return res, fmt.Errorf("%s: %w", name, ctx.Err())
			}
			return res, &ExitError{Command: name, Code: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("running %s: %w", name, err)
	}
	return res, nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
