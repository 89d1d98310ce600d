// Package commands implements CLI command handlers for traction.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traction/internal/config"
	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/ingest"
	"github.com/Sumatoshi-tech/traction/internal/observability"
	"github.com/Sumatoshi-tech/traction/internal/sources"
	"github.com/Sumatoshi-tech/traction/pkg/version"
)

const (
	fetchCmdUse   = "fetch"
	fetchCmdShort = "Fetch new data points from all configured sources"

	// envGitHubToken optionally authenticates repository listing calls,
	// raising the rate limit.
	envGitHubToken = "GITHUB_TOKEN"

	// envDiscordToken authenticates guild calls. Without it every discord
	// target is skipped with a warning.
	envDiscordToken = "DISCORD_BOT_TOKEN"

	configFlag      = "config"
	configFlagShort = "c"
	configFlagUsage = "path to config file (default: ./config.yaml)"
)

// NewFetchCommand creates the fetch subcommand.
func NewFetchCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   fetchCmdUse,
		Short: fetchCmdShort,
		Long: `Fetch asks every configured source for the data points the dataset does
not have yet and appends them. Existing rows are never modified; re-running
against identical upstream data appends nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, configFlag, configFlagShort, "", configFlagUsage)

	return cmd
}

func runFetch(cmd *cobra.Command, configFile string) error {
	cfg, cfgErr := config.LoadConfig(configFile)
	if cfgErr != nil {
		return cfgErr
	}

	ctx := cmd.Context()

	providers, initErr := observability.Init(ctx, fetchObservabilityConfig(cmd, cfg))
	if initErr != nil {
		return fmt.Errorf("init observability: %w", initErr)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.WithoutCancel(ctx))
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, metricsErr := observability.NewIngestMetrics(providers.Meter)
	if metricsErr != nil {
		return fmt.Errorf("create metrics: %w", metricsErr)
	}

	fetchers := buildFetchers(cfg, providers.Logger)
	targets := selectTargets(cfg, fetchers)

	coord := ingest.NewCoordinator(dataset.NewStore(cfg.Data.Path), fetchers...)
	coord.HorizonDays = cfg.Discord.BackfillDays
	coord.Logger = providers.Logger
	coord.Metrics = metrics
	coord.Tracer = providers.Tracer

	runReport, runErr := coord.Run(ctx, targets)

	out := cmd.OutOrStdout()
	if isQuiet(cmd) {
		out = io.Discard
	}

	printRunReport(out, runReport, cfg.Data.Path)

	if cfg.Metrics.Textfile != "" {
		textfileErr := providers.WriteTextfile(cfg.Metrics.Textfile)
		if textfileErr != nil {
			providers.Logger.Warn("write metrics textfile", "path", cfg.Metrics.Textfile, "error", textfileErr)
		}
	}

	// Per-target failures are already reported above; only a load or
	// persist failure decides the exit status.
	return runErr
}

func fetchObservabilityConfig(cmd *cobra.Command, cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeFetch
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint

	if isVerbose(cmd) {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	if isQuiet(cmd) {
		obsCfg.LogLevel = slog.LevelError
	}

	return obsCfg
}

// buildFetchers constructs one adapter per reachable source. The discord
// adapter needs a bot token; without one it is left out so its targets are
// skipped instead of failing the run.
func buildFetchers(cfg *config.Config, logger *slog.Logger) []sources.Fetcher {
	fetchers := []sources.Fetcher{
		sources.NewPyPIStats(""),
		sources.NewNPM(""),
		sources.NewGitHub("", os.Getenv(envGitHubToken)),
	}

	token := os.Getenv(envDiscordToken)
	if token == "" {
		if len(cfg.Discord.Guilds) > 0 {
			logger.Warn("discord token is not set; skipping discord targets",
				"env", envDiscordToken, "guilds", len(cfg.Discord.Guilds))
		}

		return fetchers
	}

	return append(fetchers, sources.NewDiscord("", token, cfg.Discord.ChannelWorkers))
}

// selectTargets keeps the configured targets whose source has an adapter.
func selectTargets(cfg *config.Config, fetchers []sources.Fetcher) []sources.Target {
	available := make(map[sources.Kind]bool, len(fetchers))
	for _, fetcher := range fetchers {
		available[fetcher.Kind()] = true
	}

	all := cfg.Targets()

	targets := make([]sources.Target, 0, len(all))

	for _, target := range all {
		if available[target.Kind] {
			targets = append(targets, target)
		}
	}

	return targets
}

func printRunReport(w io.Writer, runReport ingest.RunReport, storePath string) {
	for _, summary := range runReport.Targets {
		printTargetLine(w, summary)
	}

	if runReport.Appended == 0 {
		fmt.Fprintln(w, "No new data to append.")

		return
	}

	fmt.Fprintf(w, "Appended %s new entries to %s\n", humanize.Comma(int64(runReport.Appended)), storePath)
}

func printTargetLine(w io.Writer, summary ingest.TargetSummary) {
	label := targetLabel(summary.Target)

	if summary.State == ingest.StateFailed {
		color.New(color.FgRed).Fprintf(w, "  failed %s: %v\n", label, summary.Err)

		return
	}

	color.New(color.FgGreen).Fprintf(w, "  done   %s: entities=%d fetched=%d new=%d skipped=%d in %s\n",
		label, summary.Entities, summary.Fetched, summary.New, summary.Skipped,
		summary.Duration.Round(time.Millisecond))

	for _, warning := range summary.Warnings {
		color.New(color.FgYellow).Fprintf(w, "    warning: %s\n", warning)
	}
}

func targetLabel(target sources.Target) string {
	return fmt.Sprintf("%s/%s", target.Kind, target.Entity())
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}

	return verbose
}
