package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traction/internal/config"
)

const exampleConfig = `data:
  path: build/metrics.csv
pypi:
  packages: [acme-lib]
npm:
  packages: [acme-cli]
github:
  selectors: [acme, bob/tool]
discord:
  guilds:
    - id: "123456789012345678"
      name: acme-community
  backfill_days: 7
  channel_workers: 2
report:
  dir: site
metrics:
  textfile: build/traction.prom
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDataPath, cfg.Data.Path)
	assert.Equal(t, config.DefaultReportDir, cfg.Report.Dir)
	assert.Equal(t, config.DefaultBackfillDays, cfg.Discord.BackfillDays)
	assert.Equal(t, config.DefaultChannelWorkers, cfg.Discord.ChannelWorkers)
	assert.Empty(t, cfg.PyPI.Packages)
	assert.Empty(t, cfg.NPM.Packages)
	assert.Empty(t, cfg.GitHub.Selectors)
	assert.Empty(t, cfg.Discord.Guilds)
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, exampleConfig)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "build/metrics.csv", cfg.Data.Path)
	assert.Equal(t, []string{"acme-lib"}, cfg.PyPI.Packages)
	assert.Equal(t, []string{"acme-cli"}, cfg.NPM.Packages)
	assert.Equal(t, []string{"acme", "bob/tool"}, cfg.GitHub.Selectors)
	assert.Equal(t, 7, cfg.Discord.BackfillDays)
	assert.Equal(t, 2, cfg.Discord.ChannelWorkers)
	assert.Equal(t, "site", cfg.Report.Dir)
	assert.Equal(t, "build/traction.prom", cfg.Metrics.Textfile)
	assert.Empty(t, cfg.Metrics.OTLPEndpoint)

	require.Len(t, cfg.Discord.Guilds, 1)
	assert.Equal(t, "123456789012345678", cfg.Discord.Guilds[0].ID)
	assert.Equal(t, "acme-community", cfg.Discord.Guilds[0].Name)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "pypi:\n  packages: [acme-lib]\n")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme-lib"}, cfg.PyPI.Packages)
	assert.Equal(t, config.DefaultDataPath, cfg.Data.Path)
	assert.Equal(t, config.DefaultBackfillDays, cfg.Discord.BackfillDays)
}

func TestLoadConfig_ExplicitFileMissing_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config")
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "data: [\n")

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config")
}

func TestLoadConfig_InvalidValues_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "discord:\n  backfill_days: 365\n")

	_, err := config.LoadConfig(path)
	require.ErrorIs(t, err, config.ErrInvalidBackfillDays)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("TRACTION_DATA_PATH", "env/metrics.csv")

	path := writeConfigFile(t, "data:\n  path: file/metrics.csv\n")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env/metrics.csv", cfg.Data.Path)
}
