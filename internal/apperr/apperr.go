// internal/apperr/apperr.go
package apperr

import (
	"fmt"
	"time"
)

// ErrInvalidRepoURL is returned when a crawl target is not a valid
// https://github.com/{owner}/{name} repository URL.
type ErrInvalidRepoURL struct {
	URL string
}

func (e *ErrInvalidRepoURL) Error() string {
	return fmt.Sprintf("invalid repository URL: %q, expected https://github.com/{owner}/{name}", e.URL)
}

// ErrRateLimited is returned when the hosting service rejects a request due
// to rate limiting. RetryAfter is the computed wait until the limit resets;
// callers surface an empty result and must not retry automatically.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// ErrNotFound is returned when a row referenced by id does not exist in the
// mirror.
type ErrNotFound struct {
	Kind string
	ID   int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Kind, e.ID)
}
