package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/trigger"
)

// NewStepContext returns a step context with a fresh workspace, an
// in-memory artifact store and the test process PATH.
func NewStepContext(t *testing.T) *registry.StepContext {
	t.Helper()
	dir := t.TempDir()
	return &registry.StepContext{
		JobID:        "test",
		Job:          "test",
		Step:         "step",
		Runner:       "local",
		Event:        trigger.Event{Name: "manual", Ref: "refs/tags/v1.0.0"},
		WorkspaceDir: dir,
		Workspace:    osfs.New(dir),
		Artifacts:    artifact.NewFSStore(memfs.New()),
		BaseEnv:      []string{"PATH=" + os.Getenv("PATH")},
		Env:          map[string]string{},
	}
}

// WriteFiles creates files below dir from a map of slash separated paths
// to contents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// WriteScript creates an executable shell script named name in dir.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}
