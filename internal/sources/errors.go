package sources

import "errors"

// ErrNotFound is returned when an identifier does not designate the kind of
// object the request expected. It triggers a fallback strategy where one
// exists and is a hard failure only when every fallback is exhausted.
var ErrNotFound = errors.New("sources: not found")

// ErrAuthRequired is returned when a request was refused for missing or
// insufficient credentials.
var ErrAuthRequired = errors.New("sources: authorization required")

// ErrRateLimited is returned when the upstream throttled the request. The
// target fails for this run and is retried by the next scheduled run, never
// within the current one.
var ErrRateLimited = errors.New("sources: rate limited")

// ErrNoData is returned when a point-in-time source has no value anywhere
// inside the fallback window.
var ErrNoData = errors.New("sources: no data in fallback window")
