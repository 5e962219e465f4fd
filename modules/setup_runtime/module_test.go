package setup_runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

func newInput(t *testing.T, version string) *Input {
	t.Helper()
	in := &Input{Version: version}
	in.SetDefaults()
	require.NoError(t, in.Validate())
	return in
}

func TestOnRunSetupRuntime(t *testing.T) {
	bin := t.TempDir()
	testutil.WriteScript(t, bin, "python3", `echo "Python 3.11.4"`)
	testutil.WriteScript(t, bin, "python", `echo "Python 2.7.18" >&2`)

	testCases := []struct {
		name       string
		constraint string
		wantPath   string
		wantErr    bool
	}{
		{name: "first candidate matches", constraint: ">= 3.9", wantPath: bin + "/python3"},
		{name: "falls back to second candidate", constraint: "< 3", wantPath: bin + "/python"},
		{name: "nothing matches", constraint: ">= 4", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sc := testutil.NewStepContext(t)
			sc.BaseEnv = []string{"PATH=" + bin}

			out, err := OnRunSetupRuntime(ctxlog.Discard(context.Background()), sc, newInput(t, tc.constraint))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantPath, out["path"])
			assert.Equal(t, tc.wantPath, sc.Exports()["PYTHON_BIN"])
		})
	}
}

func TestInput_Validate(t *testing.T) {
	in := &Input{Version: "not a constraint"}
	in.SetDefaults()
	assert.Error(t, in.Validate())

	in = newInput(t, "~3.12")
	assert.Equal(t, []string{"python3", "python"}, in.Candidates)
}
