package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// DefaultNPMBaseURL is the production npm downloads API root.
const DefaultNPMBaseURL = "https://api.npmjs.org"

// pointFallbackDays bounds how far back the adapter walks when the
// requested day has no data yet. npm publishes counts with up to two days
// of lag; a week absorbs registry outages without masking real gaps.
const pointFallbackDays = 7

// NPM is the point-in-time adapter: the registry exposes exactly one day's
// download count per request, keyed by an explicit date. Each run requests
// yesterday, the most recent fully-elapsed UTC day, and walks back to the
// most recent prior day with data instead of failing outright.
type NPM struct {
	client  *client
	baseURL string
	now     func() time.Time
}

var _ Fetcher = (*NPM)(nil)

// NewNPM creates the adapter. An empty baseURL selects production.
func NewNPM(baseURL string) *NPM {
	if baseURL == "" {
		baseURL = DefaultNPMBaseURL
	}

	return &NPM{client: newClient(), baseURL: baseURL, now: time.Now}
}

// Kind identifies the adapter.
func (n *NPM) Kind() Kind {
	return KindNPM
}

// pointResponse mirrors the npm /downloads/point/{day}/{pkg} payload.
type pointResponse struct {
	Downloads int64  `json:"downloads"`
	Package   string `json:"package"`
}

// Fetch returns at most one record: the most recent day with data, starting
// at yesterday and walking back through the fallback window. Days the
// registry answers with not-found are absent, not errors; every other
// failure aborts the target.
func (n *NPM) Fetch(ctx context.Context, tgt Target) (Result, error) {
	yesterday := dataset.DayOf(n.now()).AddDays(-1)

	for offset := 0; offset < pointFallbackDays; offset++ {
		day := yesterday.AddDays(-offset)
		endpoint := fmt.Sprintf("%s/downloads/point/%s/%s", n.baseURL, day, url.PathEscape(tgt.Selector))

		var point pointResponse

		getErr := n.client.getJSON(ctx, endpoint, nil, &point)
		if errors.Is(getErr, ErrNotFound) {
			continue
		}

		if getErr != nil {
			return Result{}, fmt.Errorf("npm %s: %w", tgt.Selector, getErr)
		}

		rec := dataset.Record{
			Day:    day,
			Entity: tgt.Entity(),
			Source: dataset.SourceNPM,
			Value:  point.Downloads,
		}

		return Result{Records: []dataset.Record{rec}, Entities: 1}, nil
	}

	return Result{}, fmt.Errorf("npm %s: %w (%d days)", tgt.Selector, ErrNoData, pointFallbackDays)
}
