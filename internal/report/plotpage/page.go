// Package plotpage assembles standalone HTML dashboard pages around
// go-echarts charts.
package plotpage

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
)

// styleTagLen is len("</style>").
const styleTagLen = 8

// echartsJS is the chart runtime loaded by every page, served from the
// same asset host go-echarts references in its own full-page render.
const echartsJS = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"

// defaultProjectName labels every page header.
const defaultProjectName = "Traction"

// Renderable is the interface for chart components.
type Renderable interface {
	Render(w io.Writer) error
}

// Section represents a chart section within a page.
type Section struct {
	Title    string
	Subtitle string
	Chart    Renderable
}

// NavLink is one entry in the page's navigation bar.
type NavLink struct {
	Label  string
	Href   string
	Active bool
}

// Page represents a complete dashboard page.
type Page struct {
	Title       string
	Description string
	ProjectName string
	Theme       Theme
	Nav         []NavLink
	Sections    []Section
}

// NewPage creates a dashboard page with the default dark theme.
func NewPage(title, description string) *Page {
	return &Page{
		Title:       title,
		Description: description,
		ProjectName: defaultProjectName,
		Theme:       ThemeDark,
	}
}

// Add appends sections to the page.
func (p *Page) Add(sections ...Section) {
	p.Sections = append(p.Sections, sections...)
}

// Render writes the page as standalone HTML: header, navigation, one card
// per section with the chart fragment extracted from the echarts render.
func (p *Page) Render(w io.Writer) error {
	sections := make([]sectionData, 0, len(p.Sections))

	for _, section := range p.Sections {
		chartHTML, chartErr := renderChart(section.Chart)
		if chartErr != nil {
			return fmt.Errorf("render section %q: %w", section.Title, chartErr)
		}

		sections = append(sections, sectionData{
			Title:    section.Title,
			Subtitle: section.Subtitle,
			Chart:    template.HTML(chartHTML),
		})
	}

	data := pageData{
		Title:       p.Title,
		Description: p.Description,
		ProjectName: p.ProjectName,
		Theme:       GetThemeConfig(p.Theme),
		EChartsJS:   echartsJS,
		Nav:         p.Nav,
		Sections:    sections,
	}

	execErr := pageTemplate.Execute(w, data)
	if execErr != nil {
		return fmt.Errorf("execute page template: %w", execErr)
	}

	return nil
}

// pageData holds data for the page template.
type pageData struct {
	Title       string
	Description string
	ProjectName string
	Theme       ThemeConfig
	EChartsJS   string
	Nav         []NavLink
	Sections    []sectionData
}

// sectionData holds data for one section of the page template.
type sectionData struct {
	Title    string
	Subtitle string
	Chart    template.HTML
}

// renderChart renders a chart and extracts the embeddable fragment.
func renderChart(chart Renderable) (string, error) {
	if chart == nil {
		return "", nil
	}

	var buf bytes.Buffer

	renderErr := chart.Render(&buf)
	if renderErr != nil {
		return "", fmt.Errorf("render chart: %w", renderErr)
	}

	return extractChartContent(buf.String()), nil
}

// extractChartContent pulls the chart div and its script out of the full
// HTML page echarts renders, so the fragment can live inside our own shell.
// Content that is already a fragment passes through untouched.
func extractChartContent(html string) string {
	trimmed := strings.TrimSpace(html)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return html
	}

	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			break
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			break
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}

	return content
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.ProjectName}} — {{.Title}}</title>
<script src="{{.EChartsJS}}"></script>
<style>
body { margin: 0; background: {{.Theme.Background}}; color: {{.Theme.TextPrimary}};
  font: 16px/1.6 -apple-system, "Segoe UI", Roboto, sans-serif; }
main { max-width: 1100px; margin: 0 auto; padding: 24px; }
header h1 { margin: 0; font-size: 22px; }
header p { margin: 4px 0 0; color: {{.Theme.TextMuted}}; font-size: 14px; }
nav { margin: 16px 0; }
nav a { color: {{.Theme.TextMuted}}; text-decoration: none; margin-right: 12px;
  padding: 4px 10px; border: 1px solid {{.Theme.Border}}; border-radius: 6px; font-size: 14px; }
nav a.active { color: {{.Theme.TextPrimary}}; border-color: {{.Theme.Accent}}; }
.section { background: {{.Theme.Surface}}; border: 1px solid {{.Theme.Border}};
  border-radius: 8px; padding: 16px; margin: 24px 0; }
.section h2 { margin: 0; font-size: 18px; }
.section .subtitle { margin: 4px 0 12px; color: {{.Theme.TextMuted}}; font-size: 14px; }
.echart-box .item { margin: 0 auto; }
</style>
</head>
<body>
<main>
<header>
<h1>{{.ProjectName}}</h1>
<p>{{.Title}}{{if .Description}} — {{.Description}}{{end}}</p>
</header>
{{if .Nav}}<nav>{{range .Nav}}<a href="{{.Href}}"{{if .Active}} class="active"{{end}}>{{.Label}}</a>{{end}}</nav>{{end}}
{{range .Sections}}<div class="section">
<h2>{{.Title}}</h2>
{{if .Subtitle}}<p class="subtitle">{{.Subtitle}}</p>{{end}}
{{.Chart}}
</div>
{{end}}</main>
</body>
</html>
`
