// Package apptest builds apps for tests that exercise a whole run.
package apptest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/app"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

// NewApp validates cfg and creates an app logging at debug level into the
// returned buffer. Set RELEASEGRID_TEST_LOGS=true to print the log of each
// test.
func NewApp(t *testing.T, cfg app.Config, modules ...registry.Module) (*app.App, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	testApp := app.NewApp(logBuffer, appConfig, modules...)

	t.Cleanup(func() {
		if os.Getenv("RELEASEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}
