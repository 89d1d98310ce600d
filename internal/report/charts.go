package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/report/plotpage"
)

const (
	chartWidth  = "100%"
	chartHeight = "420px"
	lineWidth   = 2

	reportDirPerm = 0o750

	pageDescription = "open-source traction metrics"
)

// missingDayMark is the echarts placeholder for days a series has no value.
const missingDayMark = "-"

// sectionSpec maps one dashboard section to the sources it plots.
type sectionSpec struct {
	Title    string
	Subtitle string
	Sources  []dataset.Source
}

var sectionSpecs = []sectionSpec{
	{
		Title:    "Downloads",
		Subtitle: "Daily package downloads.",
		Sources:  []dataset.Source{dataset.SourcePyPI, dataset.SourceNPM},
	},
	{
		Title:    "GitHub",
		Subtitle: "Repository stars, forks and open issues.",
		Sources:  []dataset.Source{dataset.SourceGitHubStars, dataset.SourceGitHubForks, dataset.SourceGitHubIssues},
	},
	{
		Title:    "Community",
		Subtitle: "Member count and daily message volume.",
		Sources:  []dataset.Source{dataset.SourceDiscordMembers, dataset.SourceDiscordMessages},
	},
}

// RenderPages writes one chart page per window into dir. Windows with no
// data still get a page so the navigation never dangles.
func RenderPages(series []Series, dir string, today dataset.Day, theme plotpage.Theme) error {
	mkErr := os.MkdirAll(dir, reportDirPerm)
	if mkErr != nil {
		return fmt.Errorf("create report dir: %w", mkErr)
	}

	for _, window := range Windows {
		page := buildWindowPage(series, window, today, theme)
		outPath := filepath.Join(dir, window.FileName())

		file, createErr := os.Create(outPath)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", outPath, createErr)
		}

		renderErr := page.Render(file)
		closeErr := file.Close()

		if renderErr != nil {
			return fmt.Errorf("render %s: %w", window.Name, renderErr)
		}

		if closeErr != nil {
			return fmt.Errorf("close %s: %w", outPath, closeErr)
		}
	}

	return nil
}

func buildWindowPage(all []Series, window Window, today dataset.Day, theme plotpage.Theme) *plotpage.Page {
	page := plotpage.NewPage(window.Title(), pageDescription)
	page.Theme = theme
	page.Nav = navLinks(window)

	from := window.Start(today)

	for _, spec := range sectionSpecs {
		group := filterSeries(all, spec.Sources, from)
		if len(group) == 0 {
			continue
		}

		page.Add(plotpage.Section{
			Title:    spec.Title,
			Subtitle: spec.Subtitle,
			Chart:    buildLineChart(group, theme),
		})
	}

	return page
}

func navLinks(active Window) []plotpage.NavLink {
	links := make([]plotpage.NavLink, 0, len(Windows))

	for _, window := range Windows {
		links = append(links, plotpage.NavLink{
			Label:  window.Title(),
			Href:   window.FileName(),
			Active: window.Name == active.Name,
		})
	}

	return links
}

// filterSeries keeps the series whose source belongs to the section,
// clipped to the window; series left empty by the clip are dropped.
func filterSeries(all []Series, sources []dataset.Source, from dataset.Day) []Series {
	wanted := make(map[dataset.Source]bool, len(sources))
	for _, source := range sources {
		wanted[source] = true
	}

	var group []Series

	for _, series := range all {
		if !wanted[series.Source] {
			continue
		}

		clipped := series.Clip(from)
		if len(clipped.Points) == 0 {
			continue
		}

		group = append(group, clipped)
	}

	return group
}

// buildLineChart plots every series in the group on a shared day axis.
// Days a series lacks render as gaps rather than zeros.
func buildLineChart(group []Series, theme plotpage.Theme) *charts.Line {
	co := plotpage.NewChartOpts(theme)
	palette := plotpage.GetPalette(theme)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithLegendOpts(co.Legend()),
		charts.WithDataZoomOpts(co.DataZoom()...),
		charts.WithXAxisOpts(co.XAxis("")),
		charts.WithYAxisOpts(co.YAxis("")),
		charts.WithGridOpts(co.Grid()),
	)

	days := unionDays(group)

	labels := make([]string, len(days))
	for i, day := range days {
		labels[i] = string(day)
	}

	line.SetXAxis(labels)

	for i, series := range group {
		line.AddSeries(series.Label(), alignPoints(series, days),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: palette[i%len(palette)]}),
			charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		)
	}

	return line
}

func unionDays(group []Series) []dataset.Day {
	seen := make(map[dataset.Day]bool)

	for _, series := range group {
		for _, point := range series.Points {
			seen[point.Day] = true
		}
	}

	days := make([]dataset.Day, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}

func alignPoints(series Series, days []dataset.Day) []opts.LineData {
	byDay := make(map[dataset.Day]int64, len(series.Points))
	for _, point := range series.Points {
		byDay[point.Day] = point.Value
	}

	data := make([]opts.LineData, len(days))

	for i, day := range days {
		if value, ok := byDay[day]; ok {
			data[i] = opts.LineData{Value: value}
		} else {
			data[i] = opts.LineData{Value: missingDayMark}
		}
	}

	return data
}
