package valuecache

import "errors"

// ErrNotBuilt is returned by Get when a column key has never been built.
// The caller is expected to schedule a Rebuild.
var ErrNotBuilt = errors.New("value cache not built")

// ErrBuildCancelled is returned to a waiter whose build was superseded by a
// newer build for the same column key, or whose context was cancelled.
var ErrBuildCancelled = errors.New("value cache build cancelled")

// ErrClosed is returned when submitting work to a closed worker pool.
var ErrClosed = errors.New("value cache worker pool closed")
