package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traction/internal/config"
	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/report"
	"github.com/Sumatoshi-tech/traction/internal/report/plotpage"
)

const (
	renderCmdUse     = "render"
	renderCmdShort   = "Regenerate the HTML dashboard and README from the dataset"
	renderDryRunFlag = "dry-run"
)

// ErrEmptyDataset is returned when the dataset has no records to render.
var ErrEmptyDataset = errors.New("dataset is empty; run fetch first")

// NewRenderCommand creates the render subcommand.
func NewRenderCommand() *cobra.Command {
	var (
		configFile string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   renderCmdUse,
		Short: renderCmdShort,
		Long: `Render reads the dataset and regenerates the dashboard: one interactive
chart page per time window plus a README with the latest value of every
tracked series. It never talks to the upstream sources.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, configFile, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configFile, configFlag, configFlagShort, "", configFlagUsage)
	cmd.Flags().BoolVar(&dryRun, renderDryRunFlag, false, "print the README diff instead of writing files")

	return cmd
}

func runRender(cmd *cobra.Command, configFile string, dryRun bool) error {
	cfg, cfgErr := config.LoadConfig(configFile)
	if cfgErr != nil {
		return cfgErr
	}

	records, readErr := dataset.NewStore(cfg.Data.Path).ReadAll()
	if readErr != nil {
		return readErr
	}

	if len(records) == 0 {
		return ErrEmptyDataset
	}

	series := report.BuildSeries(records)
	today := dataset.DayOf(time.Now().UTC())
	readme := report.BuildReadme(series, today)

	if dryRun {
		return printReadmeDiff(cmd, cfg.Report.Dir, readme)
	}

	renderErr := report.RenderPages(series, cfg.Report.Dir, today, plotpage.ThemeDark)
	if renderErr != nil {
		return renderErr
	}

	writeErr := report.WriteReadme(cfg.Report.Dir, readme)
	if writeErr != nil {
		return writeErr
	}

	if !isQuiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d chart pages and README into %s\n",
			len(report.Windows), cfg.Report.Dir)
	}

	return nil
}

func printReadmeDiff(cmd *cobra.Command, dir, readme string) error {
	diff, diffErr := report.DiffReadme(dir, readme)
	if diffErr != nil {
		return diffErr
	}

	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "README is up to date.")

		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), diff)

	return nil
}
