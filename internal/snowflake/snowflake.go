// Package snowflake converts between calendar days and the time-ordered
// snowflake identifiers Discord assigns to every object. The mapping is pure
// arithmetic: no state, no network. It exists so the backfill adapter can
// turn "earliest missing day" into a cursor lower bound and bucket fetched
// items back into calendar days.
package snowflake

import (
	"time"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// epochMillis is the Discord epoch, 2015-01-01T00:00:00Z in Unix milliseconds.
const epochMillis int64 = 1420070400000

// timestampShift is the bit offset of the millisecond timestamp inside an ID.
// The low 22 bits hold worker, process, and sequence numbers.
const timestampShift = 22

// FromTime returns the smallest snowflake whose timestamp is not before t.
// Times before the epoch clamp to zero.
func FromTime(t time.Time) uint64 {
	millis := t.UnixMilli() - epochMillis
	if millis < 0 {
		millis = 0
	}

	return uint64(millis) << timestampShift
}

// DayFloor returns the smallest snowflake belonging to the given calendar
// day: the exclusive-lower-bound cursor for fetching that day's items.
// Monotonic: later days yield strictly non-decreasing bounds.
func DayFloor(day dataset.Day) uint64 {
	return FromTime(day.Time())
}

// TimeOf returns the creation time encoded in the identifier, in UTC.
func TimeOf(id uint64) time.Time {
	millis := int64(id>>timestampShift) + epochMillis

	return time.UnixMilli(millis).UTC()
}

// DayOf returns the UTC calendar day the identifier was created on.
func DayOf(id uint64) dataset.Day {
	return dataset.DayOf(TimeOf(id))
}
