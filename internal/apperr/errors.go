package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrConfig = errors.New("invalid configuration")
	ErrAuth   = errors.New("credentials not resolved")
)

// APIError is a Jira REST failure that survived the retry budget
// (or was never retryable to begin with).
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API error %d for %s: %s", e.Status, e.Path, e.Body)
}
