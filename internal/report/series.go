// Package report renders the traction dashboard from the dataset alone:
// one interactive chart page per time window plus the README summary table.
// It never talks to the upstream sources.
package report

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// Window is a trailing time range rendered as one chart page.
type Window struct {
	// Name is the page file stem and link slug.
	Name string
	// Days is the trailing length in calendar days; zero means full history.
	Days int
}

// Windows lists every rendered time range, shortest first.
var Windows = []Window{
	{Name: "7d", Days: 7},
	{Name: "14d", Days: 14},
	{Name: "30d", Days: 30},
	{Name: "365d", Days: 365},
	{Name: "all", Days: 0},
}

// Title is the human-readable window label.
func (w Window) Title() string {
	if w.Days == 0 {
		return "Full history"
	}

	return fmt.Sprintf("Last %d days", w.Days)
}

// FileName is the chart page file name for this window.
func (w Window) FileName() string {
	return w.Name + ".html"
}

// Start returns the first day inside the window ending at today. The zero
// Day means the window is unbounded.
func (w Window) Start(today dataset.Day) dataset.Day {
	if w.Days == 0 {
		return ""
	}

	return today.AddDays(-(w.Days - 1))
}

// Point is one plotted measurement.
type Point struct {
	Day   dataset.Day
	Value int64
}

// Series is the plotted history of one (entity, source) pair, points
// sorted by day ascending.
type Series struct {
	Entity string
	Source dataset.Source
	Points []Point
}

// Label names the series in chart legends and the README table.
func (s Series) Label() string {
	return fmt.Sprintf("%s (%s)", s.Entity, sourceLabel(s.Source))
}

// Latest returns the most recent point, if any.
func (s Series) Latest() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}

	return s.Points[len(s.Points)-1], true
}

// Clip returns the series restricted to points on or after from. The zero
// Day keeps everything.
func (s Series) Clip(from dataset.Day) Series {
	idx := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Day.Before(from)
	})

	clipped := s
	clipped.Points = s.Points[idx:]

	return clipped
}

type seriesKey struct {
	entity string
	source dataset.Source
}

// BuildSeries groups records into one series per (entity, source). Points
// are sorted by day; series are sorted by source then entity so chart and
// README output is stable across runs.
func BuildSeries(records []dataset.Record) []Series {
	grouped := make(map[seriesKey][]Point)

	for _, record := range records {
		key := seriesKey{entity: record.Entity, source: record.Source}
		grouped[key] = append(grouped[key], Point{Day: record.Day, Value: record.Value})
	}

	series := make([]Series, 0, len(grouped))

	for key, points := range grouped {
		sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })

		series = append(series, Series{Entity: key.entity, Source: key.source, Points: points})
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].Source != series[j].Source {
			return series[i].Source < series[j].Source
		}

		return series[i].Entity < series[j].Entity
	})

	return series
}

// sourceLabels maps sources to the short metric names shown to users.
var sourceLabels = map[dataset.Source]string{
	dataset.SourcePyPI:            "pypi downloads",
	dataset.SourceNPM:             "npm downloads",
	dataset.SourceGitHubStars:     "stars",
	dataset.SourceGitHubForks:     "forks",
	dataset.SourceGitHubIssues:    "open issues",
	dataset.SourceDiscordMembers:  "members",
	dataset.SourceDiscordMessages: "messages",
}

func sourceLabel(source dataset.Source) string {
	if label, ok := sourceLabels[source]; ok {
		return label
	}

	return string(source)
}
