package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// DefaultPyPIBaseURL is the production pypistats API root.
const DefaultPyPIBaseURL = "https://pypistats.org/api"

// categoryWithMirrors selects the download series that includes mirror
// traffic; pypistats reports each day twice, with and without mirrors.
const categoryWithMirrors = "with_mirrors"

// PyPIStats is the cumulative-range adapter: pypistats returns a package's
// entire retained daily-download history in one response, so the adapter
// requests the maximal range every run and returns every data point.
// Over-fetching is deliberate; deduplication happens downstream and a
// narrower request would risk missing days the store does not have yet.
type PyPIStats struct {
	client  *client
	baseURL string
}

var _ Fetcher = (*PyPIStats)(nil)

// NewPyPIStats creates the adapter. An empty baseURL selects production.
func NewPyPIStats(baseURL string) *PyPIStats {
	if baseURL == "" {
		baseURL = DefaultPyPIBaseURL
	}

	return &PyPIStats{client: newClient(), baseURL: baseURL}
}

// Kind identifies the adapter.
func (p *PyPIStats) Kind() Kind {
	return KindPyPI
}

// overallResponse mirrors the pypistats /packages/{pkg}/overall payload.
type overallResponse struct {
	Data []struct {
		Category  string `json:"category"`
		Date      string `json:"date"`
		Downloads int64  `json:"downloads"`
	} `json:"data"`
}

// Fetch returns one record per retained day for the target package.
func (p *PyPIStats) Fetch(ctx context.Context, tgt Target) (Result, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/overall", p.baseURL, url.PathEscape(tgt.Selector))

	var overall overallResponse

	getErr := p.client.getJSON(ctx, endpoint, nil, &overall)
	if getErr != nil {
		return Result{}, fmt.Errorf("pypistats %s: %w", tgt.Selector, getErr)
	}

	records := make([]dataset.Record, 0, len(overall.Data))

	for _, point := range overall.Data {
		if point.Category != categoryWithMirrors {
			continue
		}

		day, dayErr := dataset.ParseDay(point.Date)
		if dayErr != nil {
			return Result{}, fmt.Errorf("pypistats %s: %w", tgt.Selector, dayErr)
		}

		records = append(records, dataset.Record{
			Day:    day,
			Entity: tgt.Entity(),
			Source: dataset.SourcePyPI,
			Value:  point.Downloads,
		})
	}

	return Result{Records: records, Entities: 1}, nil
}
