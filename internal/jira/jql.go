package jira

import (
	"fmt"
	"strings"
)

// CoreScopeJQL returns the query that selects the core issue scope:
// either a saved filter reference or the raw JQL, whichever is
// configured. Exactly one must be set; config validation enforces that
// before a client exists.
func CoreScopeJQL(filterID, rawJQL string) string {
	if filterID != "" {
		return fmt.Sprintf("filter = %s", filterID)
	}
	return rawJQL
}

// LabelScanJQL returns the query that selects every issue currently
// carrying any of the given labels, excluding ignored statuses
// server-side when any are configured.
func LabelScanJQL(labels, ignoredStatuses []string) string {
	var b strings.Builder
	b.WriteString("labels IN (")
	b.WriteString(quoteList(labels))
	b.WriteString(")")
	if len(ignoredStatuses) > 0 {
		b.WriteString(" AND status NOT IN (")
		b.WriteString(quoteList(ignoredStatuses))
		b.WriteString(")")
	}
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + escapeJQL(v) + `"`
	}
	return strings.Join(quoted, ", ")
}

// escapeJQL escapes embedded quote characters in a JQL string literal.
func escapeJQL(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
