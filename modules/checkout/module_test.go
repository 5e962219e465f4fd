package checkout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

func TestOnRunCheckout_CopiesLocalSource(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{
		"Cargo.toml":      "[package]\nname = \"demo\"\n",
		"src/lib.rs":      "pub fn f() {}\n",
		".git/HEAD":       "ref: refs/heads/main\n",
		".github/ci.yaml": "on: push\n",
	})

	sc := testutil.NewStepContext(t)
	sc.SourceDir = src
	sc.Event.SHA = "abc123"

	in := &Input{}
	in.SetDefaults()
	out, err := OnRunCheckout(ctxlog.Discard(context.Background()), sc, in)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "src", "lib.rs"))
	assert.FileExists(t, filepath.Join(sc.WorkspaceDir, ".github", "ci.yaml"))
	_, err = os.Stat(filepath.Join(sc.WorkspaceDir, ".git"))
	assert.True(t, os.IsNotExist(err), ".git must not be copied")
	assert.Equal(t, "abc123", out["commit"])
}

func TestOnRunCheckout_NoSource(t *testing.T) {
	sc := testutil.NewStepContext(t)
	in := &Input{}
	in.SetDefaults()
	_, err := OnRunCheckout(ctxlog.Discard(context.Background()), sc, in)
	assert.ErrorContains(t, err, "no source directory")
}

func TestInput_RejectsEscapingPath(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	action, ok := r.Action("checkout")
	require.True(t, ok)

	_, err := registry.NewInput(action, nil)
	require.NoError(t, err)

	in := &Input{Path: "../outside"}
	assert.Error(t, in.Validate())
}
