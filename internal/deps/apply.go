package deps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// AppliedChange is one executed (or previewed) mutation as it appears
// in the audit record.
type AppliedChange struct {
	IssueKey string   `json:"issue_key"`
	Added    []string `json:"labels_added,omitempty"`
	Removed  []string `json:"labels_removed,omitempty"`
	Action   string   `json:"action"`
	Reasons  []string `json:"reasons,omitempty"`
}

var (
	applyLine   = color.New(color.FgGreen)
	previewLine = color.New(color.FgYellow)
)

// Applier executes or previews planned changes and accumulates label
// counters into RunStats.
type Applier struct {
	Client Tracker
	Apply  bool
	Out    io.Writer
	Logger *slog.Logger
}

// Run processes changes sorted by issue key. In preview mode it only
// reports the intended action with its reasons; in apply mode it sends
// the label patch and reports the action taken.
func (a *Applier) Run(ctx context.Context, changes []PlannedChange, stats *RunStats) ([]AppliedChange, error) {
	sorted := append([]PlannedChange(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].IssueKey < sorted[j].IssueKey })

	applied := make([]AppliedChange, 0, len(sorted))
	for _, ch := range sorted {
		action := actionText(ch)

		if a.Apply {
			if err := a.Client.UpdateLabels(ctx, ch.IssueKey, ch.Add, ch.Remove); err != nil {
				return applied, fmt.Errorf("deps: update labels on %s: %w", ch.IssueKey, err)
			}
			applyLine.Fprintf(a.Out, "APPLY: %s: %s\n", ch.IssueKey, action)
			a.Logger.Info("applied label change",
				slog.String("issue", ch.IssueKey),
				slog.String("action", action))
		} else {
			previewLine.Fprintf(a.Out, "DRY-RUN: %s: %s (%s)\n", ch.IssueKey, action, strings.Join(ch.Reasons, "; "))
			a.Logger.Info("planned label change",
				slog.String("issue", ch.IssueKey),
				slog.String("action", action),
				slog.Any("reasons", ch.Reasons))
		}

		stats.LabelsAdded += len(ch.Add)
		stats.LabelsRemoved += len(ch.Remove)

		applied = append(applied, AppliedChange{
			IssueKey: ch.IssueKey,
			Added:    sortedLabels(ch.Add),
			Removed:  sortedLabels(ch.Remove),
			Action:   action,
			Reasons:  ch.Reasons,
		})
	}
	return applied, nil
}

func actionText(ch PlannedChange) string {
	var parts []string
	if len(ch.Add) > 0 {
		parts = append(parts, "add "+strings.Join(sortedLabels(ch.Add), ", "))
	}
	if len(ch.Remove) > 0 {
		parts = append(parts, "remove "+strings.Join(sortedLabels(ch.Remove), ", "))
	}
	return strings.Join(parts, " and ")
}

func sortedLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.Strings(out)
	return out
}
