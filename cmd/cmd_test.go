package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/config"
	"github.com/JakeFAU/runwatch/internal/server"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestViewCommandText(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snap.yaml")
	doc := `
progress:
  subject_id: AAPL
  batch_index: 3
  batch_total: 10
  steps:
    - {label: fetch, status: done}
    - {label: score, status: done}
  result:
    decision: strong buy
screening:
  stage: ranking
  pct: 40
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	out, err := execute(t, "", "view", path)
	require.NoError(t, err)
	require.Equal(t, "[run] strong buy 100% (3/10) {positive}\n", out)
}

func TestViewCommandJSONFromStdin(t *testing.T) {
	t.Parallel()

	out, err := execute(t, `{"screening":{"stage":"error","detail":"quota exceeded","pct":20}}`, "view", "-", "-o", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"mode": "sweep"`)
	require.Contains(t, out, `"label": "error · quota exceeded"`)
	require.Contains(t, out, `"tone": "error"`)
}

func TestViewCommandEmptyAndErrors(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "{}", "view", "-")
	require.NoError(t, err)
	require.Equal(t, "(nothing to display)\n", out)

	_, err = execute(t, "{}", "view", "-", "-o", "xml")
	require.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "", "view", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read snapshot")

	_, err = execute(t, "progress: [", "view", "-")
	require.ErrorContains(t, err, "decode snapshot")
}

func TestViewCommandColor(t *testing.T) {
	t.Parallel()

	doc := `{"screening":{"stage":"complete","pct":100}}`
	out, err := execute(t, doc, "view", "-", "--color", "always")
	require.NoError(t, err)
	require.Contains(t, out, "\x1b[")
	require.Contains(t, out, "complete")

	out, err = execute(t, doc, "view", "-", "--color", "never")
	require.NoError(t, err)
	require.NotContains(t, out, "\x1b[")

	_, err = execute(t, doc, "view", "-", "--color", "rainbow")
	require.ErrorContains(t, err, "unknown color mode")
}

// TestServeCommandBuildsAndRuns swaps package-level hooks, so it is not parallel.
func TestServeCommandBuildsAndRuns(t *testing.T) {
	origLoad, origRun := loadConfig, runApp
	t.Cleanup(func() { loadConfig, runApp = origLoad, origRun })

	loadConfig = func(string) (config.Config, error) {
		cfg, err := config.Load("")
		cfg.Notify.MetricsEnabled = false
		cfg.Logging.Development = false
		return cfg, err
	}
	ran := false
	runApp = func(ctx context.Context, app *server.App) error {
		ran = true
		require.NotNil(t, app.Engine())
		return app.Close(ctx)
	}

	_, err := execute(t, "", "serve")
	require.NoError(t, err)
	require.True(t, ran)
}

func TestRootCommandConfigError(t *testing.T) {
	origLoad := loadConfig
	t.Cleanup(func() { loadConfig = origLoad })
	loadConfig = func(string) (config.Config, error) { return config.Config{}, errors.New("bad file") }

	_, err := execute(t, "", "serve")
	require.ErrorContains(t, err, "bad file")
}

func TestConfigFromMissing(t *testing.T) {
	t.Parallel()
	_, err := configFrom(context.Background())
	require.Error(t, err)
}
