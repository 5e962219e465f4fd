package app

import (
	"errors"
	"fmt"
)

// Defaults applied by NewConfig.
const (
	DefaultEvent   = "manual"
	DefaultWorkers = 4
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // .hcl file or directory, or .yaml/.yml file

	Event   string // name of the trigger event
	Ref     string // git ref; detected from RepoDir when empty
	RepoDir string

	WorkerCount  int
	WorkspaceDir string // a temporary directory when empty
	Artifacts    string // artifact store location, see artifact.OpenRun
	Secrets      string // secrets provider, see secrets.Open
	NotifyURL    string
	FailFast     bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.PipelinePath == "" {
		errs = append(errs, errors.New("PipelinePath is a required configuration field and cannot be empty"))
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if cfg.RepoDir == "" {
		cfg.RepoDir = "."
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = DefaultWorkers
	}
	if cfg.WorkerCount < 0 {
		errs = append(errs, fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort))
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of 'debug', 'info', 'warn', 'error'", cfg.LogLevel))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}
