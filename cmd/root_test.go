package cmd

import (
	"arxivshorts/internal/config"
	"arxivshorts/internal/version"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBuildInfo sets the linker variables for one test and restores them after.
func setBuildInfo(t *testing.T, ver, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuilt := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuilt
		version.ResetBuildVars()
	})
	version.ResetBuildVars()
	Version, Commit, BuildTime = ver, commit, built
}

func TestRootCommand_VersionFlag(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		version      string
		commit       string
		buildTime    string
		wantContains []string
	}{
		{
			name:      "long flag",
			args:      []string{"--version"},
			version:   "v2.0.0",
			commit:    "def456abc789",
			buildTime: "2025-06-15T10:30:00Z",
			wantContains: []string{
				"ArxivShorts Pipeline",
				"Version: v2.0.0",
				"Commit: def456abc789",
				"Built: 2025-06-15T10:30:00Z",
			},
		},
		{
			name:      "short flag",
			args:      []string{"-v"},
			version:   "v1.5.0",
			commit:    "short123",
			buildTime: "2025-06-15T10:30:00Z",
			wantContains: []string{"ArxivShorts Pipeline", "Version: v1.5.0", "Commit: short123"},
		},
		{
			name:         "no build info",
			args:         []string{"--version"},
			wantContains: []string{"Version: dev", "Commit: unknown", "Built: unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuildInfo(t, tt.version, tt.commit, tt.buildTime)

			root := newRootCmd()
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs(tt.args)

			require.NoError(t, root.Execute())
			for _, want := range tt.wantContains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRootCommand_ShowsHelpWithoutFlags(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "arXiv listing")
	assert.NotContains(t, buf.String(), "Commit:")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"worker", "poller", "loader", "enqueue", "migrate", "version"} {
		t.Run(name, func(t *testing.T) {
			found, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, found.Name())
		})
	}

	for _, sub := range []string{"up", "down", "version"} {
		found, _, err := rootCmd.Find([]string{"migrate", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, found.Name())
	}
}

func TestNewViper_Defaults(t *testing.T) {
	v, err := newViper("")
	require.NoError(t, err)

	cfg := config.New(v)
	assert.Equal(t, 100, cfg.Pipeline.Threshold)
	assert.Equal(t, config.QueueDriverNATS, cfg.Queue.Driver)
	assert.Equal(t, config.StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, "America/New_York", cfg.Enqueue.Timezone)
}

func TestNewViper_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
pipeline:
  threshold: 25
store:
  driver: sqlite
sqlite:
  path: /tmp/arxivshorts-test.db
`), 0o600))

	t.Setenv("ARXIVSHORTS_PIPELINE_THRESHOLD", "40")

	v, err := newViper(file)
	require.NoError(t, err)

	cfg := config.New(v)
	assert.Equal(t, 40, cfg.Pipeline.Threshold)
	assert.Equal(t, config.StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/arxivshorts-test.db", cfg.SQLite.Path)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
