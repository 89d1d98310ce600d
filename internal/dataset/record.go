// Package dataset persists traction metrics as an append-only, keyed CSV
// record set. The (day, entity, source) triple is the natural key: once a
// key is recorded its value is immutable and later fetches reproducing it
// are discarded by the caller.
package dataset

import (
	"errors"
	"fmt"
	"time"
)

// dayLayout is the ISO-8601 calendar day format used everywhere.
const dayLayout = "2006-01-02"

// Day is a calendar day in UTC, formatted YYYY-MM-DD with no time component.
// Days compare and sort correctly as strings.
type Day string

// DayOf truncates a time to its UTC calendar day.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(dayLayout))
}

// ParseDay parses an ISO-8601 calendar day.
func ParseDay(s string) (Day, error) {
	t, parseErr := time.Parse(dayLayout, s)
	if parseErr != nil {
		return "", fmt.Errorf("parse day %q: %w", s, parseErr)
	}

	return DayOf(t), nil
}

// Time returns midnight UTC of the day. Malformed days yield the zero time.
func (d Day) Time() time.Time {
	t, parseErr := time.Parse(dayLayout, string(d))
	if parseErr != nil {
		return time.Time{}
	}

	return t.UTC()
}

// AddDays returns the day shifted by n calendar days (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d falls strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d < other
}

// Source is the enumerated origin and metric tag of a record. It determines
// how the value is interpreted.
type Source string

const (
	// SourcePyPI is the cumulative daily download count from pypistats.
	SourcePyPI Source = "pypi"

	// SourceNPM is the point-in-time daily download count from the npm registry.
	SourceNPM Source = "npm"

	// SourceGitHubStars is a repository star-count snapshot.
	SourceGitHubStars Source = "github_stars"

	// SourceGitHubForks is a repository fork-count snapshot.
	SourceGitHubForks Source = "github_forks"

	// SourceGitHubIssues is a repository open-issue-count snapshot.
	SourceGitHubIssues Source = "github_issues"

	// SourceDiscordMembers is a community member-count snapshot.
	SourceDiscordMembers Source = "discord_members"

	// SourceDiscordMessages is a backfilled community daily message count.
	SourceDiscordMessages Source = "discord_messages"
)

// ErrInvalidRecord is returned when a record fails field validation.
var ErrInvalidRecord = errors.New("dataset: invalid record")

// Record is the atomic unit of the dataset: one non-negative measurement of
// one entity from one source on one calendar day.
type Record struct {
	Day    Day
	Entity string
	Source Source
	Value  int64
}

// Key returns the record's natural key.
func (r Record) Key() Key {
	return Key{Day: r.Day, Entity: r.Entity, Source: r.Source}
}

// Validate checks the field invariants: a well-formed day, a non-empty
// entity and source, and a non-negative value.
func (r Record) Validate() error {
	if _, parseErr := ParseDay(string(r.Day)); parseErr != nil {
		return fmt.Errorf("%w: day %q", ErrInvalidRecord, r.Day)
	}

	if r.Entity == "" {
		return fmt.Errorf("%w: empty entity", ErrInvalidRecord)
	}

	if r.Source == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidRecord)
	}

	if r.Value < 0 {
		return fmt.Errorf("%w: negative value %d for %s/%s", ErrInvalidRecord, r.Value, r.Entity, r.Source)
	}

	return nil
}

// Key is the unique (day, entity, source) triple identifying a record.
type Key struct {
	Day    Day
	Entity string
	Source Source
}

// KeySet is an in-memory index of every key currently in the store, used
// for O(1) duplicate checks during a run. It is not safe for concurrent use.
type KeySet struct {
	keys map[Key]struct{}
}

// NewKeySet creates an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[Key]struct{})}
}

// Has reports whether the key is already present.
func (s *KeySet) Has(k Key) bool {
	_, ok := s.keys[k]

	return ok
}

// Add inserts the key. Adding an existing key is a no-op.
func (s *KeySet) Add(k Key) {
	s.keys[k] = struct{}{}
}

// Len returns the number of distinct keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}
