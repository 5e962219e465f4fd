package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

const token = "pypi-AgEIcHlwaS5vcmc"

// fakeIndex mimics the legacy upload API: it stores files by name and
// rejects a file it already holds with 400 "File already exists".
type fakeIndex struct {
	mu       sync.Mutex
	files    map[string]map[string]string
	requests int
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	user, pass, ok := r.BasicAuth()
	if !ok || user != "__token__" || pass != token {
		http.Error(w, "Invalid or non-existent authentication information.", http.StatusForbidden)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("content")
	if err != nil {
		http.Error(w, "missing content", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)
	digest := sha256.Sum256(data)
	if r.FormValue("sha256_digest") != hex.EncodeToString(digest[:]) {
		http.Error(w, "digest mismatch", http.StatusBadRequest)
		return
	}
	if _, exists := f.files[header.Filename]; exists {
		http.Error(w, "400 File already exists. See https://pypi.org/help/#file-name-reuse", http.StatusBadRequest)
		return
	}
	fields := map[string]string{}
	for _, k := range []string{":action", "protocol_version", "name", "version", "filetype", "pyversion"} {
		fields[k] = r.FormValue(k)
	}
	f.files[header.Filename] = fields
	w.WriteHeader(http.StatusOK)
}

func newIndex(t *testing.T) (*fakeIndex, string) {
	t.Helper()
	idx := &fakeIndex{files: map[string]map[string]string{}}
	srv := httptest.NewServer(idx)
	t.Cleanup(srv.Close)
	return idx, srv.URL + "/legacy/"
}

func newStep(t *testing.T) *registry.StepContext {
	t.Helper()
	sc := testutil.NewStepContext(t)
	testutil.WriteFiles(t, sc.WorkspaceDir, map[string]string{
		"dist/wheels-linux-x86_64/demo-1.2.0-cp39-abi3-manylinux_2_17_x86_64.whl":   "x86 wheel",
		"dist/wheels-linux-aarch64/demo-1.2.0-cp39-abi3-manylinux_2_17_aarch64.whl": "arm wheel",
		"dist/wheels-linux-aarch64/notes.txt":                                       "ignored",
	})
	return sc
}

func newInput(t *testing.T, url string, skipExisting bool) *Input {
	t.Helper()
	in := &Input{Token: token}
	in.SetDefaults()
	in.RepositoryURL = url
	in.SkipExisting = skipExisting
	require.NoError(t, in.Validate())
	return in
}

func TestOnRunPublish(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("uploads every wheel", func(t *testing.T) {
		idx, url := newIndex(t)
		out, err := OnRunPublish(ctx, newStep(t), newInput(t, url, true))
		require.NoError(t, err)
		assert.Equal(t, "2", out["uploaded"])
		assert.Equal(t, "0", out["skipped"])

		fields := idx.files["demo-1.2.0-cp39-abi3-manylinux_2_17_x86_64.whl"]
		assert.Equal(t, map[string]string{
			":action":          "file_upload",
			"protocol_version": "1",
			"name":             "demo",
			"version":          "1.2.0",
			"filetype":         "bdist_wheel",
			"pyversion":        "cp39",
		}, fields)
	})

	t.Run("re-publishing with skip_existing succeeds without duplicates", func(t *testing.T) {
		idx, url := newIndex(t)
		_, err := OnRunPublish(ctx, newStep(t), newInput(t, url, true))
		require.NoError(t, err)

		out, err := OnRunPublish(ctx, newStep(t), newInput(t, url, true))
		require.NoError(t, err)
		assert.Equal(t, "0", out["uploaded"])
		assert.Equal(t, "2", out["skipped"])
		assert.Len(t, idx.files, 2)
	})

	t.Run("existing file fails without skip_existing", func(t *testing.T) {
		_, url := newIndex(t)
		_, err := OnRunPublish(ctx, newStep(t), newInput(t, url, true))
		require.NoError(t, err)

		_, err = OnRunPublish(ctx, newStep(t), newInput(t, url, false))
		assert.ErrorContains(t, err, "already exists on the index")
	})

	t.Run("bad credential fails and is not leaked", func(t *testing.T) {
		_, url := newIndex(t)
		in := newInput(t, url, true)
		in.Token = "wrong-token"

		_, err := OnRunPublish(ctx, newStep(t), in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
		assert.NotContains(t, err.Error(), "wrong-token")
	})

	t.Run("zero packages never reach the index", func(t *testing.T) {
		idx, url := newIndex(t)
		_, err := OnRunPublish(ctx, testutil.NewStepContext(t), newInput(t, url, true))
		assert.ErrorIs(t, err, ErrNoPackages)
		assert.Zero(t, idx.requests)
	})
}

func TestOnRunPublish_ClientWarningsUseStepLogger(t *testing.T) {
	logs := &testutil.SafeBuffer{}
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))

	_, url := newIndex(t)
	_, err := OnRunPublish(ctx, newStep(t), newInput(t, url, true))
	require.NoError(t, err)

	// The test index is plain HTTP, which the client warns about when
	// credentials are sent.
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "sensitive credentials")
	assert.NotContains(t, logs.String(), token)
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, AlreadyExists(http.StatusConflict, ""))
	assert.True(t, AlreadyExists(http.StatusBadRequest, "File already exists."))
	assert.False(t, AlreadyExists(http.StatusBadRequest, "Invalid version"))
	assert.False(t, AlreadyExists(http.StatusForbidden, "already exists"))
}

func TestParseFilename(t *testing.T) {
	testCases := []struct {
		filename string
		want     Package
		wantErr  bool
	}{
		{
			filename: "demo-1.2.0-cp39-abi3-manylinux_2_17_x86_64.whl",
			want:     Package{Name: "demo", Version: "1.2.0", FileType: "bdist_wheel", PyVersion: "cp39"},
		},
		{
			filename: "demo-1.2.0-1-py3-none-any.whl",
			want:     Package{Name: "demo", Version: "1.2.0", FileType: "bdist_wheel", PyVersion: "py3"},
		},
		{
			filename: "demo_pkg-1.2.0.tar.gz",
			want:     Package{Name: "demo_pkg", Version: "1.2.0", FileType: "sdist", PyVersion: "source"},
		},
		{filename: "demo.whl", wantErr: true},
		{filename: "demo-.tar.gz", wantErr: true},
		{filename: "README.md", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			got, err := ParseFilename(tc.filename)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.want.Filename = tc.filename
			assert.Equal(t, tc.want, got)
		})
	}
}
