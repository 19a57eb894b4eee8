package errors

import "errors"

var (
	// ErrNotFound is the normal outcome of a lookup that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrStoreClosed is returned when an operation reaches a store whose
	// connection has been closed. It is distinct from ErrNotFound on purpose:
	// callers must not confuse a missing record with a dead store.
	ErrStoreClosed = errors.New("offline store closed")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateVerificationCode is raised when a certificate insert collides
	// with an existing verification code.
	ErrDuplicateVerificationCode = errors.New("duplicate verification code")
	// ErrDownloadActive is returned when a course download is requested while
	// one for the same course is still running or paused.
	ErrDownloadActive = errors.New("download already active for course")
	// ErrNoDownload is returned by pause/resume/cancel when no download state
	// exists for the course.
	ErrNoDownload = errors.New("no download state for course")
	// ErrDrainActive tells a second drain caller that a drain is already
	// running; the running drain covers the caller's items.
	ErrDrainActive = errors.New("sync drain already in progress")
	// ErrOffline is returned by a manual sync trigger while the device has no
	// connectivity.
	ErrOffline = errors.New("device is offline")
	// ErrNoResponses is raised when assessment results are computed with no
	// recorded answers. That is a programming error, not an empty result.
	ErrNoResponses = errors.New("no assessment responses recorded")
)
