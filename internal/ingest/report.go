package ingest

import (
	"time"

	"github.com/Sumatoshi-tech/traction/internal/sources"
)

// State is a target's position in the fetch lifecycle.
type State int

// Lifecycle states. A target moves Idle -> Expanding -> Fetching -> Merging
// -> Done; any step may jump to Failed without affecting other targets.
// Expanding is skipped when the selector is already a single entity.
const (
	StateIdle State = iota
	StateExpanding
	StateFetching
	StateMerging
	StateDone
	StateFailed
)

// stateNames indexes State values to their display names.
var stateNames = [...]string{"idle", "expanding", "fetching", "merging", "done", "failed"}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// TargetSummary is the terminal record of one target's pass through a run.
type TargetSummary struct {
	Target sources.Target
	State  State
	Err    error

	// Duration covers expand through merge for this target.
	Duration time.Duration

	// Entities is how many entities the selector resolved to.
	Entities int

	// Fetched counts records the adapter returned before merging.
	Fetched int

	// New counts records accepted into the append batch.
	New int

	// Skipped counts records whose key was already present, in the store
	// or earlier in this run.
	Skipped int

	// Partial marks a result that covered only part of the target.
	Partial bool

	Warnings []string
}

// RunReport aggregates one fetch run across all targets, in input order.
type RunReport struct {
	Targets  []TargetSummary
	Appended int
}

// Failed returns summaries for targets that did not complete.
func (report RunReport) Failed() []TargetSummary {
	var failed []TargetSummary

	for _, summary := range report.Targets {
		if summary.State == StateFailed {
			failed = append(failed, summary)
		}
	}

	return failed
}
