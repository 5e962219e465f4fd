package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/releasegrid/internal/app"
)

// Exit codes.
const (
	ExitFailed = 1 // at least one job instance failed
	ExitUsage  = 2 // invalid flags, pipeline or trigger
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// options are the flags shared by every subcommand.
type options struct {
	pipeline        string
	event           string
	ref             string
	repo            string
	workers         int
	workspace       string
	artifacts       string
	secrets         string
	healthcheckPort int
	notifyURL       string
	failFast        bool
	logFormat       string
	logLevel        string
}

// Execute runs the command line given by args. Help output and command
// results go to outW.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	root := NewRootCommand(outW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Anything cobra rejects before a command runs is a usage error.
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

// NewRootCommand builds the releasegrid command tree.
func NewRootCommand(outW io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "releasegrid",
		Short: "Builds, gates and publishes package releases as a job graph",
		Long: `releasegrid runs a release pipeline: matrix build jobs in parallel, a
release gate evaluated against the triggering git ref, and a publish job
that only runs when every build succeeded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVarP(&opts.pipeline, "pipeline", "p", "", "Path to the pipeline file (.hcl, .yaml) or a directory of .hcl files.")
	pf.StringVar(&opts.event, "event", app.DefaultEvent, "Name of the event that triggers the run.")
	pf.StringVar(&opts.ref, "ref", "", "Git ref of the run, e.g. v1.2.0 or refs/heads/main. Detected from --repo when empty.")
	pf.StringVar(&opts.repo, "repo", ".", "Repository the pipeline builds.")

	root.AddCommand(newRunCommand(outW, opts), newValidateCommand(outW, opts), newPlanCommand(outW, opts))
	return root
}

func newRunCommand(outW io.Writer, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [PIPELINE_PATH]",
		Short: "Runs the pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, opts, args)
			if err != nil {
				return err
			}
			_, err = a.Run(cmd.Context())
			return exitError(err)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.workers, "workers", app.DefaultWorkers, "Number of job instances run concurrently.")
	f.StringVar(&opts.workspace, "workspace", "", "Directory for job workspaces. A temporary directory is used when empty.")
	f.StringVar(&opts.artifacts, "artifacts", "", "Artifact store: a directory, file://path or s3://bucket/prefix.")
	f.StringVar(&opts.secrets, "secrets", "env", "Secrets provider: 'env', 'aws' or 'aws:<prefix>'.")
	f.IntVar(&opts.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	f.StringVar(&opts.notifyURL, "notify-url", "", "socket.io endpoint receiving job status events.")
	f.BoolVar(&opts.failFast, "fail-fast", false, "Cancel matrix siblings as soon as one instance fails.")
	return cmd
}

func newValidateCommand(outW io.Writer, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [PIPELINE_PATH]",
		Short: "Loads the pipeline and builds its job graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, opts, args)
			if err != nil {
				return err
			}
			return exitError(a.Validate(cmd.Context()))
		},
	}
}

func newPlanCommand(outW io.Writer, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [PIPELINE_PATH]",
		Short: "Prints the job instances and the gate outcome for the trigger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, opts, args)
			if err != nil {
				return err
			}
			_, err = a.Plan(cmd.Context())
			return exitError(err)
		},
	}
}

// newApp validates the flags and creates the app.
func newApp(outW io.Writer, opts *options, args []string) (*app.App, error) {
	path := opts.pipeline
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, &ExitError{Code: ExitUsage, Message: "no pipeline given: pass PIPELINE_PATH or --pipeline"}
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath:    path,
		Event:           opts.event,
		Ref:             opts.ref,
		RepoDir:         opts.repo,
		WorkerCount:     opts.workers,
		WorkspaceDir:    opts.workspace,
		Artifacts:       opts.artifacts,
		Secrets:         opts.secrets,
		NotifyURL:       opts.notifyURL,
		FailFast:        opts.failFast,
		HealthcheckPort: opts.healthcheckPort,
		LogFormat:       strings.ToLower(opts.logFormat),
		LogLevel:        strings.ToLower(opts.logLevel),
	})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return app.NewApp(outW, cfg), nil
}

// exitError maps an app error to the process exit code.
func exitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrConfig):
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	default:
		return &ExitError{Code: ExitFailed, Message: fmt.Sprintf("run failed: %v", err)}
	}
}
