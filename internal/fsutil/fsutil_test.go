package fsutil

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "dist/b.whl", []byte("b"), 0o644))
	require.NoError(t, util.WriteFile(fs, "dist/a.tar.gz", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, "dist/sub/c.whl", []byte("c"), 0o644))

	files, err := ListFiles(fs, "dist")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tar.gz", "b.whl", "sub/c.whl"}, files)

	files, err = ListFiles(fs, "missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCopyTree_Skip(t *testing.T) {
	src, dst := memfs.New(), memfs.New()
	require.NoError(t, util.WriteFile(src, "repo/.git/HEAD", []byte("ref"), 0o644))
	require.NoError(t, util.WriteFile(src, "repo/src/lib.rs", []byte("fn main() {}"), 0o644))

	copied, err := CopyTree(src, "repo", dst, "work", func(rel string) bool {
		return rel == ".git" || strings.HasPrefix(rel, ".git/")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.rs"}, copied)

	data, err := util.ReadFile(dst, "work/src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", string(data))

	_, err = dst.Stat("work/.git/HEAD")
	assert.Error(t, err)
}
