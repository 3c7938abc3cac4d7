package deps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AlanSobenes/jira-label-sync/internal/jira"
)

// Tracker is the query-client surface the engine depends on.
// *jira.Client satisfies it; tests substitute an in-memory fake.
type Tracker interface {
	Search(ctx context.Context, jql string, fields []string, name string) ([]jira.Issue, jira.SearchDiagnostics, error)
	GetIssue(ctx context.Context, key string, fields []string) (jira.Issue, error)
	UpdateLabels(ctx context.Context, key string, add, remove []string) error
}

// RunStats counts work done during one run. Owned by the single
// execution path; no locking.
type RunStats struct {
	IssuesScanned     int
	DependenciesFound int
	LabelsAdded       int
	LabelsRemoved     int
}

// Field projections for the three query shapes of a run.
var (
	coreFields     = []string{"issuetype", "status", "issuelinks", "labels"}
	neighborFields = []string{"labels", "status"}
	scanFields     = []string{"issuelinks", "labels", "status"}
)

// Engine derives the label mutations that make the tracked label mark
// exactly the set of issues depending on the core scope.
type Engine struct {
	Client  Tracker
	Rules   LinkRules
	Scope   Scope
	Labels  TrackedLabels
	CoreJQL string
	ScanJQL string
	Logger  *slog.Logger
}

// BuildChanges runs both reconciliation passes and returns the merged,
// conflict-resolved change set sorted by issue key, plus run stats.
func (e *Engine) BuildChanges(ctx context.Context) ([]PlannedChange, *RunStats, error) {
	stats := &RunStats{}
	cs := newChangeSet()

	coreIssues, _, err := e.Client.Search(ctx, e.CoreJQL, coreFields, "core_scope")
	if err != nil {
		return nil, nil, fmt.Errorf("deps: load core scope: %w", err)
	}

	var core []jira.Issue
	coreKeys := make(map[string]struct{})
	for _, issue := range coreIssues {
		if e.Scope.InCore(issue) {
			core = append(core, issue)
			coreKeys[issue.Key] = struct{}{}
		}
	}
	stats.IssuesScanned = len(core)
	e.Logger.Info("core scope loaded",
		slog.Int("returned", len(coreIssues)),
		slog.Int("in_scope", len(core)))

	if err := e.discoverDependents(ctx, core, coreKeys, cs, stats); err != nil {
		return nil, nil, err
	}
	if err := e.cleanupLabeled(ctx, coreKeys, cs); err != nil {
		return nil, nil, err
	}

	return cs.finalize(), stats, nil
}

// discoverDependents is the first pass: walk every core issue's
// authoritative links and stage the canonical label (plus alias
// removals) on dependency targets outside the core scope. Each
// neighbor is fetched and inspected at most once per run.
func (e *Engine) discoverDependents(ctx context.Context, core []jira.Issue, coreKeys map[string]struct{}, cs *changeSet, stats *RunStats) error {
	visited := make(map[string]struct{})

	for _, coreIssue := range core {
		for _, key := range e.authoritativeNeighbors(coreIssue) {
			if _, ok := coreKeys[key]; ok {
				continue
			}
			stats.DependenciesFound++
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}

			neighbor, err := e.Client.GetIssue(ctx, key, neighborFields)
			if err != nil {
				return fmt.Errorf("deps: fetch dependent %s: %w", key, err)
			}
			if e.Scope.StatusIgnored(neighbor.StatusName()) {
				continue
			}

			labels := neighbor.Fields.Labels
			if !containsFold(labels, e.Labels.Canonical) {
				cs.stageAdd(key, e.Labels.Canonical,
					fmt.Sprintf("depends on core issue %s, missing label %q", coreIssue.Key, e.Labels.Canonical))
			}
			for _, label := range labels {
				if e.Labels.IsAlias(label) {
					cs.stageRemove(key, label,
						fmt.Sprintf("migrating deprecated label %q to %q", label, e.Labels.Canonical))
				}
			}
		}
	}
	return nil
}

// cleanupLabeled is the second pass: re-scan every issue currently
// carrying a tracked label. Issues still linked into core are
// self-healed onto the canonical label; issues with no authoritative
// edge left are stripped of the whole tracked family.
func (e *Engine) cleanupLabeled(ctx context.Context, coreKeys map[string]struct{}, cs *changeSet) error {
	labeled, _, err := e.Client.Search(ctx, e.ScanJQL, scanFields, "labeled_issues")
	if err != nil {
		return fmt.Errorf("deps: scan labeled issues: %w", err)
	}

	for _, issue := range labeled {
		if _, ok := coreKeys[issue.Key]; ok {
			continue
		}
		if e.Scope.StatusIgnored(issue.StatusName()) {
			continue
		}

		hasEdge := false
		for _, key := range e.authoritativeNeighbors(issue) {
			if _, ok := coreKeys[key]; ok {
				hasEdge = true
				break
			}
		}

		labels := issue.Fields.Labels
		if hasEdge {
			if !containsFold(labels, e.Labels.Canonical) {
				cs.stageAdd(issue.Key, e.Labels.Canonical,
					fmt.Sprintf("still depends on core scope, restoring label %q", e.Labels.Canonical))
			}
			for _, label := range labels {
				if e.Labels.IsAlias(label) {
					cs.stageRemove(issue.Key, label,
						fmt.Sprintf("migrating deprecated label %q to %q", label, e.Labels.Canonical))
				}
			}
			continue
		}

		for _, label := range labels {
			if e.Labels.IsTracked(label) {
				cs.stageRemove(issue.Key, label,
					"no authoritative links into core scope remain")
			}
		}
	}
	return nil
}

// authoritativeNeighbors returns the distinct keys reachable from the
// issue over authoritative links, in link order. Outward and inward
// slots are classified independently per direction.
func (e *Engine) authoritativeNeighbors(issue jira.Issue) []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(key string) {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	for _, link := range issue.Fields.Links {
		if link.OutwardIssue != nil && e.Rules.IsAuthoritative(link, Outward) {
			add(link.OutwardIssue.Key)
		}
		if link.InwardIssue != nil && e.Rules.IsAuthoritative(link, Inward) {
			add(link.InwardIssue.Key)
		}
	}
	return keys
}
