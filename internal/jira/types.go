// Package jira is the query client for the Jira REST API: paginated
// searches, single-issue fetches, and label patches, with bounded retry
// on transient failures. The rest of the engine only ever sees the typed
// projections defined here, never raw response maps.
package jira

// Issue is the projection of a Jira issue limited to the fields this
// tool ever requests.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the requested subset of an issue's fields. Absent
// fields stay at their zero value.
type IssueFields struct {
	IssueType *IssueType `json:"issuetype,omitempty"`
	Status    *Status    `json:"status,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Links     []Link     `json:"issuelinks,omitempty"`
}

// IssueType carries only the type name.
type IssueType struct {
	Name string `json:"name"`
}

// Status carries only the status name.
type Status struct {
	Name string `json:"name"`
}

// Link is one entry of an issue's link list. Exactly one of
// OutwardIssue/InwardIssue is populated per direction the link is seen
// from: OutwardIssue means the owning issue points at the referenced
// issue under the type's outward phrase.
type Link struct {
	Type         LinkType  `json:"type"`
	OutwardIssue *IssueRef `json:"outwardIssue,omitempty"`
	InwardIssue  *IssueRef `json:"inwardIssue,omitempty"`
}

// LinkType describes a Jira link type with its directional phrases.
type LinkType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// IssueRef is the key-only reference on either end of a link.
type IssueRef struct {
	Key string `json:"key"`
}

// TypeName returns the issue type name, or "" when the field was not
// requested.
func (i Issue) TypeName() string {
	if i.Fields.IssueType == nil {
		return ""
	}
	return i.Fields.IssueType.Name
}

// StatusName returns the status name, or "" when the field was not
// requested.
func (i Issue) StatusName() string {
	if i.Fields.Status == nil {
		return ""
	}
	return i.Fields.Status.Name
}
