package commands

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traction/internal/config"
	"github.com/Sumatoshi-tech/traction/internal/ingest"
	"github.com/Sumatoshi-tech/traction/internal/sources"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fetcherKinds(fetchers []sources.Fetcher) []sources.Kind {
	kinds := make([]sources.Kind, 0, len(fetchers))
	for _, fetcher := range fetchers {
		kinds = append(kinds, fetcher.Kind())
	}

	return kinds
}

func TestBuildFetchers_WithoutDiscordToken(t *testing.T) {
	t.Setenv(envDiscordToken, "")

	cfg := &config.Config{}
	cfg.Discord.Guilds = []config.GuildConfig{{ID: "42"}}

	fetchers := buildFetchers(cfg, discardLogger())

	assert.Equal(t, []sources.Kind{sources.KindPyPI, sources.KindNPM, sources.KindGitHub}, fetcherKinds(fetchers))
}

func TestBuildFetchers_WithDiscordToken(t *testing.T) {
	t.Setenv(envDiscordToken, "bot-token")

	fetchers := buildFetchers(&config.Config{}, discardLogger())

	require.Len(t, fetchers, 4)
	assert.Equal(t, sources.KindDiscord, fetchers[3].Kind())
}

func TestSelectTargets_DropsKindsWithoutFetcher(t *testing.T) {
	t.Setenv(envDiscordToken, "")

	cfg := &config.Config{}
	cfg.PyPI.Packages = []string{"acme-lib"}
	cfg.Discord.Guilds = []config.GuildConfig{{ID: "42", Name: "acme"}}

	fetchers := buildFetchers(cfg, discardLogger())
	targets := selectTargets(cfg, fetchers)

	require.Len(t, targets, 1)
	assert.Equal(t, sources.KindPyPI, targets[0].Kind)
}

func TestSelectTargets_KeepsAllWhenEveryFetcherPresent(t *testing.T) {
	t.Setenv(envDiscordToken, "bot-token")

	cfg := &config.Config{}
	cfg.PyPI.Packages = []string{"acme-lib"}
	cfg.NPM.Packages = []string{"acme-cli"}
	cfg.GitHub.Selectors = []string{"acme"}
	cfg.Discord.Guilds = []config.GuildConfig{{ID: "42", Name: "acme"}}

	fetchers := buildFetchers(cfg, discardLogger())
	targets := selectTargets(cfg, fetchers)

	assert.Len(t, targets, 4)
}

func TestPrintRunReport_SummaryLines(t *testing.T) {
	t.Parallel()

	runReport := ingest.RunReport{
		Appended: 1234,
		Targets: []ingest.TargetSummary{
			{
				Target:   sources.Target{Kind: sources.KindPyPI, Selector: "acme-lib"},
				State:    ingest.StateDone,
				Entities: 1,
				Fetched:  180,
				New:      2,
				Skipped:  178,
				Duration: 1200 * time.Millisecond,
			},
			{
				Target: sources.Target{Kind: sources.KindNPM, Selector: "acme-cli"},
				State:  ingest.StateFailed,
				Err:    errors.New("upstream down"),
			},
		},
	}

	var out bytes.Buffer

	printRunReport(&out, runReport, "data/traction.csv")

	got := out.String()

	assert.Contains(t, got, "done   pypi/acme-lib")
	assert.Contains(t, got, "new=2")
	assert.Contains(t, got, "skipped=178")
	assert.Contains(t, got, "failed npm/acme-cli: upstream down")
	assert.Contains(t, got, "Appended 1,234 new entries to data/traction.csv")
}

func TestPrintRunReport_NothingNew(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printRunReport(&out, ingest.RunReport{}, "data/traction.csv")

	assert.Contains(t, out.String(), "No new data to append.")
}

func TestPrintRunReport_Warnings(t *testing.T) {
	t.Parallel()

	runReport := ingest.RunReport{
		Targets: []ingest.TargetSummary{
			{
				Target:   sources.Target{Kind: sources.KindDiscord, Selector: "42", Alias: "acme-community"},
				State:    ingest.StateDone,
				Partial:  true,
				Warnings: []string{"channel 99 is not accessible"},
			},
		},
	}

	var out bytes.Buffer

	printRunReport(&out, runReport, "data/traction.csv")

	assert.Contains(t, out.String(), "warning: channel 99 is not accessible")
	assert.Contains(t, out.String(), "done   discord/acme-community")
}

func TestTargetLabel_UsesAlias(t *testing.T) {
	t.Parallel()

	label := targetLabel(sources.Target{Kind: sources.KindDiscord, Selector: "42", Alias: "acme-community"})
	assert.Equal(t, "discord/acme-community", label)

	label = targetLabel(sources.Target{Kind: sources.KindGitHub, Selector: "acme"})
	assert.Equal(t, "github/acme", label)
}
