package artifacts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

func upload(t *testing.T, store artifact.Store, name string, files map[string]string) (*registry.StepContext, error) {
	t.Helper()
	sc := testutil.NewStepContext(t)
	sc.Artifacts = store
	testutil.WriteFiles(t, sc.WorkspaceDir, files)

	in := &UploadInput{Name: name}
	in.SetDefaults()
	require.NoError(t, in.Validate())
	_, err := OnRunUpload(ctxlog.Discard(context.Background()), sc, in)
	return sc, err
}

func download(t *testing.T, store artifact.Store, in *DownloadInput) (*registry.StepContext, map[string]string, error) {
	t.Helper()
	sc := testutil.NewStepContext(t)
	sc.Artifacts = store
	require.NoError(t, in.Validate())
	out, err := OnRunDownload(ctxlog.Discard(context.Background()), sc, in)
	return sc, out, err
}

func TestUploadAndDownload(t *testing.T) {
	store := artifact.NewFSStore(memfs.New())
	_, err := upload(t, store, "wheels-linux-x86_64", map[string]string{
		"dist/demo-1.0.0-cp39-abi3-manylinux_2_17_x86_64.whl": "x86",
	})
	require.NoError(t, err)
	_, err = upload(t, store, "wheels-linux-aarch64", map[string]string{
		"dist/demo-1.0.0-cp39-abi3-manylinux_2_17_aarch64.whl": "arm",
	})
	require.NoError(t, err)

	t.Run("pattern into separate directories", func(t *testing.T) {
		sc, out, err := download(t, store, &DownloadInput{Pattern: "wheels-*", Path: "dist"})
		require.NoError(t, err)
		assert.Equal(t, "2", out["artifacts"])
		assert.Equal(t, "wheels-linux-aarch64,wheels-linux-x86_64", out["names"])
		assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "dist", "wheels-linux-x86_64", "demo-1.0.0-cp39-abi3-manylinux_2_17_x86_64.whl"))
		assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "dist", "wheels-linux-aarch64", "demo-1.0.0-cp39-abi3-manylinux_2_17_aarch64.whl"))
	})

	t.Run("pattern merged", func(t *testing.T) {
		sc, out, err := download(t, store, &DownloadInput{Pattern: "wheels-*", Path: "dist", MergeMultiple: true})
		require.NoError(t, err)
		assert.Equal(t, "2", out["count"])
		assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "dist", "demo-1.0.0-cp39-abi3-manylinux_2_17_aarch64.whl"))
	})

	t.Run("single name", func(t *testing.T) {
		sc, _, err := download(t, store, &DownloadInput{Name: "wheels-linux-x86_64", Path: "."})
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(sc.WorkspaceDir, "demo-1.0.0-cp39-abi3-manylinux_2_17_x86_64.whl"))
	})

	t.Run("second upload under the same name fails", func(t *testing.T) {
		_, err := upload(t, store, "wheels-linux-x86_64", map[string]string{"dist/other.whl": "x"})
		assert.ErrorIs(t, err, artifact.ErrExists)
	})
}

func TestDownload_NoMatch(t *testing.T) {
	store := artifact.NewFSStore(memfs.New())

	_, _, err := download(t, store, &DownloadInput{Pattern: "wheels-*", Path: "dist"})
	assert.ErrorIs(t, err, artifact.ErrNoMatch)

	_, out, err := download(t, store, &DownloadInput{Pattern: "wheels-*", Path: "dist", AllowEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, "0", out["artifacts"])
}

func TestUpload_NoFiles(t *testing.T) {
	store := artifact.NewFSStore(memfs.New())
	_, err := upload(t, store, "wheels-linux-x86_64", nil)
	assert.ErrorContains(t, err, "no files found in dist")

	names, err := store.List(context.Background(), "*")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestInputs_Validate(t *testing.T) {
	testCases := []struct {
		name  string
		input interface{ Validate() error }
	}{
		{name: "upload name with slash", input: &UploadInput{Name: "a/b", IfNoFilesFound: "error"}},
		{name: "upload bad policy", input: &UploadInput{Name: "a", IfNoFilesFound: "explode"}},
		{name: "download neither", input: &DownloadInput{}},
		{name: "download both", input: &DownloadInput{Name: "a", Pattern: "a*"}},
		{name: "download escaping path", input: &DownloadInput{Name: "a", Path: "../x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.input.Validate())
		})
	}
}
