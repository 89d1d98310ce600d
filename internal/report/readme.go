package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

const (
	readmeFileName = "README.md"
	readmeFilePerm = 0o600
)

// BuildReadme renders the dashboard README: one latest-value row per
// series, grouped like the chart sections, plus links to every chart page.
func BuildReadme(series []Series, generatedOn dataset.Day) string {
	var b strings.Builder

	b.WriteString("# Traction\n\n")
	fmt.Fprintf(&b, "Generated on %s from the traction dataset. Do not edit by hand.\n\n", generatedOn)

	b.WriteString("## Latest values\n\n")
	b.WriteString(latestTable(series))
	b.WriteString("\n\n## Charts\n\n")

	for _, window := range Windows {
		fmt.Fprintf(&b, "- [%s](%s)\n", window.Title(), window.FileName())
	}

	return b.String()
}

// latestTable renders the markdown table of each series' newest value,
// in section order so the README mirrors the dashboard.
func latestTable(series []Series) string {
	tbl := table.NewWriter()
	tbl.AppendHeader(table.Row{"Entity", "Metric", "Day", "Value"})

	for _, spec := range sectionSpecs {
		for _, source := range spec.Sources {
			for _, s := range series {
				if s.Source != source {
					continue
				}

				latest, ok := s.Latest()
				if !ok {
					continue
				}

				tbl.AppendRow(table.Row{
					s.Entity,
					sourceLabel(s.Source),
					string(latest.Day),
					humanize.Comma(latest.Value),
				})
			}
		}
	}

	return tbl.RenderMarkdown()
}

// WriteReadme writes the README into the report directory.
func WriteReadme(dir, content string) error {
	mkErr := os.MkdirAll(dir, reportDirPerm)
	if mkErr != nil {
		return fmt.Errorf("create report dir: %w", mkErr)
	}

	writeErr := os.WriteFile(filepath.Join(dir, readmeFileName), []byte(content), readmeFilePerm)
	if writeErr != nil {
		return fmt.Errorf("write readme: %w", writeErr)
	}

	return nil
}

// DiffReadme returns a terminal-colored diff between the README on disk
// and the proposed content; empty means no change. A missing README diffs
// against the empty string.
func DiffReadme(dir, content string) (string, error) {
	existing, readErr := os.ReadFile(filepath.Join(dir, readmeFileName))
	if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
		return "", fmt.Errorf("read readme: %w", readErr)
	}

	current := string(existing)
	if current == content {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(current, content, false)

	return dmp.DiffPrettyText(diffs), nil
}
