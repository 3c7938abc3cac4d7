package deps

import (
	"strings"

	"github.com/AlanSobenes/jira-label-sync/internal/jira"
)

// Scope decides whether an issue belongs to the core set. Issue type
// names match exactly as configured; status comparisons are
// case-insensitive everywhere this tool looks at statuses.
type Scope struct {
	issueTypes      map[string]struct{}
	ignoredStatuses map[string]struct{}
}

// NewScope builds the core scope filter.
func NewScope(issueTypes, ignoredStatuses []string) Scope {
	return Scope{
		issueTypes:      exactSet(issueTypes),
		ignoredStatuses: foldSet(ignoredStatuses),
	}
}

// InCore reports whether the issue's type is a core type and its status
// is not ignored.
func (s Scope) InCore(issue jira.Issue) bool {
	if _, ok := s.issueTypes[issue.TypeName()]; !ok {
		return false
	}
	return !s.StatusIgnored(issue.StatusName())
}

// StatusIgnored reports whether the status name is in the ignored set.
func (s Scope) StatusIgnored(status string) bool {
	_, ok := s.ignoredStatuses[strings.ToLower(status)]
	return ok
}
