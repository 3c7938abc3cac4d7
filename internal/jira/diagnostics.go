package jira

// StopReason records why a paginated search stopped requesting pages.
type StopReason string

const (
	StopEmptyPage          StopReason = "empty_page"
	StopReportedTotal      StopReason = "reported_total_reached"
	StopNextTokenExhausted StopReason = "next_page_token_exhausted"
)

// SearchDiagnostics is the per-query pagination record. It is appended
// to the client's running summary once per completed search and never
// mutated afterwards.
type SearchDiagnostics struct {
	Query         string
	Mode          string
	Pages         int
	IssuesFetched int
	ReportedTotal int
	HasTotal      bool
	StoppedReason StopReason
}

// Mismatch reports whether the server-reported total disagrees with the
// number of issues actually delivered. Non-fatal: the remote count and
// the delivered set can legitimately diverge under concurrent mutation,
// but callers should know the run may be based on an inconsistent
// snapshot.
func (d SearchDiagnostics) Mismatch() bool {
	return d.HasTotal && d.ReportedTotal != d.IssuesFetched
}

// PaginationSummary aggregates pagination totals across every search a
// client executed during one run.
type PaginationSummary struct {
	QueriesExecuted         int
	PagesFetched            int
	IssuesFetched           int
	ReportedTotalMismatches int
}

func (s *PaginationSummary) record(d SearchDiagnostics) {
	s.QueriesExecuted++
	s.PagesFetched += d.Pages
	s.IssuesFetched += d.IssuesFetched
	if d.Mismatch() {
		s.ReportedTotalMismatches++
	}
}
