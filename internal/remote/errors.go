package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var ErrConflict = errors.New("version conflict")

// ConflictError reports that the server rejected a save because the caller's
// version token no longer matches the server's current version: another
// writer (tab or device) applied a save in between.
type ConflictError struct {
	ChapterID     string
	BaseVersion   int64
	ServerVersion int64
}

func (e *ConflictError) Error() string {
	if e.ServerVersion > 0 {
		return fmt.Sprintf("version conflict for chapter %s: sent %d, server at %d",
			e.ChapterID, e.BaseVersion, e.ServerVersion)
	}
	return fmt.Sprintf("version conflict for chapter %s", e.ChapterID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError reports that the server rejected the payload itself.
// Retrying the same payload cannot succeed.
type ValidationError struct {
	ChapterID string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("save rejected for chapter %s", e.ChapterID)
	}
	return fmt.Sprintf("save rejected for chapter %s: %s", e.ChapterID, e.Message)
}

// HTTPError carries any other non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether a save attempt may be retried later. Only a
// version conflict or a payload rejection is terminal; every other non-2xx
// status, network failure, or timeout is worth another attempt.
func IsTransient(err error) bool {
	if err == nil || IsConflict(err) || IsValidation(err) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Unrecognized transport-level failure. Treat as transient so a brief
	// blip does not become a terminal error without exhausting the budget.
	return true
}
