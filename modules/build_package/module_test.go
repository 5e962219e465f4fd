package build_package

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

// fakeMaturin writes a wheel into the --out directory and records its
// arguments and RUSTC_WRAPPER.
const fakeMaturin = `
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--out" ]; then out="$a"; fi
  prev="$a"
done
echo "$@" > args.txt
echo "${RUSTC_WRAPPER:-none}" > wrapper.txt
mkdir -p "$out"
touch "$out/demo-1.0.0-cp39-abi3-manylinux_2_17_x86_64.whl"
`

func newInput() *Input {
	in := &Input{}
	in.SetDefaults()
	return in
}

func TestInput_Command(t *testing.T) {
	in := newInput()
	in.Target = "aarch64"
	in.Args = []string{"--locked"}
	assert.Equal(t, []string{"build", "--release", "--target", "aarch64", "--out", "dist", "--locked"}, in.Command())

	in.Release = false
	in.Target = ""
	in.Manifest = "py/Cargo.toml"
	assert.Equal(t, []string{"build", "--out", "dist", "--manifest-path", "py/Cargo.toml", "--locked"}, in.Command())
}

func TestOnRunBuildPackage(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	bin := t.TempDir()
	tool := testutil.WriteScript(t, bin, "maturin", fakeMaturin)

	t.Run("produces packages with sccache", func(t *testing.T) {
		sc := testutil.NewStepContext(t)
		in := newInput()
		in.Tool = tool
		in.Target = "x86_64"
		in.Sccache = true

		out, err := OnRunBuildPackage(ctx, sc, in)
		require.NoError(t, err)
		assert.Equal(t, "1", out["count"])
		assert.Equal(t, "demo-1.0.0-cp39-abi3-manylinux_2_17_x86_64.whl", out["files"])

		args, err := os.ReadFile(filepath.Join(sc.WorkspaceDir, "args.txt"))
		require.NoError(t, err)
		assert.Equal(t, "build --release --target x86_64 --out dist", strings.TrimSpace(string(args)))
		wrapper, err := os.ReadFile(filepath.Join(sc.WorkspaceDir, "wrapper.txt"))
		require.NoError(t, err)
		assert.Equal(t, "sccache", strings.TrimSpace(string(wrapper)))
	})

	t.Run("no output is a failure", func(t *testing.T) {
		sc := testutil.NewStepContext(t)
		in := newInput()
		in.Tool = testutil.WriteScript(t, bin, "silent", "exit 0")

		_, err := OnRunBuildPackage(ctx, sc, in)
		assert.ErrorContains(t, err, "produced no files in dist")
	})

	t.Run("tool failure", func(t *testing.T) {
		sc := testutil.NewStepContext(t)
		in := newInput()
		in.Tool = testutil.WriteScript(t, bin, "broken", "echo 'error: linker failed' >&2; exit 101")

		_, err := OnRunBuildPackage(ctx, sc, in)
		var exitErr *command.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 101, exitErr.Code)
	})
}
