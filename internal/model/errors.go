package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when caller input fails validation.
	// Never retried; surfaced to the caller as a rejection.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSongNotFound is returned when no song exists for a task ID
	ErrSongNotFound = errors.New("song not found")

	// ErrDuplicateTaskID is returned when a song with the same task ID
	// already exists in the store
	ErrDuplicateTaskID = errors.New("task id already exists")

	// ErrIncompleteCompletionReport is returned when a success report
	// carries no audio URL; the job stays pending
	ErrIncompleteCompletionReport = errors.New("success report missing audio url")

	// ErrInvalidSource is returned when an artifact URL is empty or malformed
	ErrInvalidSource = errors.New("invalid audio source url")
)

// Upstream operations
const (
	OpGeneration = "generation"
	OpSubmission = "submission"
	OpPoll       = "poll"
)

// UpstreamError carries diagnostic detail from a failed upstream call.
// StatusCode is zero for transport-level failures.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s failed", e.Op)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// DownloadError wraps a failed artifact fetch. Retryable; the job record is
// never mutated on a download failure.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download of %s failed (status %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
