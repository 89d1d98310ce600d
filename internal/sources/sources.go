// Package sources fetches traction metrics from upstream HTTP APIs. Each
// adapter translates one source's native protocol (full-history range,
// point-in-time lookup, paginated listing, cursor-windowed event stream)
// into the uniform record shape of the dataset. Adapters never consult the
// store; deduplication is the coordinator's job.
package sources

import (
	"context"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// Kind identifies one upstream source protocol. The set is closed: adding a
// source means adding an adapter, not registering a plugin.
type Kind string

const (
	// KindPyPI fetches the full retained download history per package.
	KindPyPI Kind = "pypi"

	// KindNPM fetches one day's download count per request.
	KindNPM Kind = "npm"

	// KindGitHub lists repositories by owner and snapshots their counters.
	KindGitHub Kind = "github"

	// KindDiscord snapshots guild membership and backfills daily message
	// counts over a snowflake cursor window.
	KindDiscord Kind = "discord"
)

// Target is one configured selector an adapter must keep current.
type Target struct {
	Kind Kind

	// Selector is an explicit entity identifier or a group selector the
	// adapter expands (a repository owner, a guild ID).
	Selector string

	// Alias overrides the entity name recorded for the selector. Used by
	// sources whose native identifiers are opaque (a guild ID stays stable
	// while the community renames itself).
	Alias string

	// Missing lists the horizon days a cursor-windowed fetch must
	// reconstruct, earliest first. Computed by the caller from its key set;
	// empty means there is no backfill work.
	Missing []dataset.Day
}

// Entity returns the name recorded for a non-expanding selector.
func (t Target) Entity() string {
	if t.Alias != "" {
		return t.Alias
	}

	return t.Selector
}

// Result is the outcome of one adapter fetch.
type Result struct {
	// Records holds every fetched data point, duplicates included. The
	// coordinator deduplicates against the store.
	Records []dataset.Record

	// Entities is the number of concrete entities covered after expansion.
	Entities int

	// Partial marks a best-effort result: some sub-resources were
	// inaccessible and their data could not be gathered.
	Partial bool

	// Warnings describe skipped or truncated sub-resources.
	Warnings []string
}

// Fetcher is the single capability every adapter exposes. A fetch is finite
// and not restartable: a fresh call re-executes all network requests.
type Fetcher interface {
	Kind() Kind
	Fetch(ctx context.Context, tgt Target) (Result, error)
}

// Expander is implemented by adapters whose selectors may be group
// selectors. Expansion results are cached inside the adapter for the run
// only; they are never persisted.
type Expander interface {
	Expand(ctx context.Context, selector string) ([]string, error)
}

// Backfiller is implemented by adapters that reconstruct daily values over
// a missing-day window. The caller computes the window for the returned
// source and passes it in [Target.Missing].
type Backfiller interface {
	BackfillSource() dataset.Source
}
