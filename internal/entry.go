// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/AlanSobenes/jira-label-sync/internal/audit"
	"github.com/AlanSobenes/jira-label-sync/internal/auth"
	"github.com/AlanSobenes/jira-label-sync/internal/deps"
	"github.com/AlanSobenes/jira-label-sync/internal/jira"
)

// Run executes one reconciliation run with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{out: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	mode := "DRY-RUN"
	if app.apply {
		mode = "APPLY"
	}

	// Initialize structured JSON logger. Human-readable change lines and
	// the summary go to app.out; diagnostics go here.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("jira_base_url", cfg.Jira.BaseURL),
		slog.String("mode", mode),
		slog.String("canonical_label", cfg.Labels.Canonical),
		slog.Int("label_aliases", len(cfg.Labels.Aliases)),
		slog.Int("page_size", cfg.Jira.PageSize))

	// Resolve credentials before any network activity.
	hostname := cfg.Jira.Hostname()
	token, err := auth.ResolveToken(cfg.Jira.TokenEnvVar, hostname)
	if err != nil {
		return err
	}
	authMode := auth.ResolveMode(cfg.Jira.AuthMode, hostname)

	var email string
	if authMode == jira.AuthBasic {
		if email, err = auth.ResolveEmail(cfg.Jira.EmailEnvVar); err != nil {
			return err
		}
	}

	client, err := jira.NewClient(jira.Options{
		BaseURL:  cfg.Jira.BaseURL,
		AuthMode: authMode,
		Email:    email,
		Token:    token,
		PageSize: cfg.Jira.PageSize,
		Timeout:  cfg.Jira.Timeout(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	labels := deps.TrackedLabels{Canonical: cfg.Labels.Canonical, Aliases: cfg.Labels.Aliases}
	engine := &deps.Engine{
		Client:  client,
		Rules:   deps.NewLinkRules(cfg.Links.Types, cfg.Links.TypeIDs, cfg.Links.Directions, cfg.Links.IgnoredTypeIDs, cfg.Links.IgnoredNames),
		Scope:   deps.NewScope(cfg.Scope.CoreIssueTypes, cfg.Scope.IgnoredStatuses),
		Labels:  labels,
		CoreJQL: jira.CoreScopeJQL(cfg.Jira.CoreFilterID, cfg.Jira.CoreJQL),
		ScanJQL: jira.LabelScanJQL(labels.All(), cfg.Scope.IgnoredStatuses),
		Logger:  logger,
	}

	changes, stats, err := engine.BuildChanges(ctx)
	if err != nil {
		return err
	}

	applier := &deps.Applier{Client: client, Apply: app.apply, Out: app.out, Logger: logger}
	applied, err := applier.Run(ctx, changes, stats)
	if err != nil {
		return err
	}

	if app.apply {
		now := time.Now()
		path, err := audit.Write(cfg.App.AuditDir, audit.Record{
			RunID:          audit.NewRunID(now),
			GeneratedAtUTC: now.UTC().Format(time.RFC3339),
			Mode:           mode,
			JiraBaseURL:    cfg.Jira.BaseURL,
			CoreFilterID:   cfg.Jira.CoreFilterID,
			CoreJQL:        cfg.Jira.CoreJQL,
			CanonicalLabel: cfg.Labels.Canonical,
			LabelAliases:   cfg.Labels.Aliases,
			Summary: audit.Summary{
				IssuesScanned:     stats.IssuesScanned,
				DependenciesFound: stats.DependenciesFound,
				LabelsAdded:       stats.LabelsAdded,
				LabelsRemoved:     stats.LabelsRemoved,
			},
			Changes: applied,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.out, "AUDIT: wrote %s\n", path)
	}

	printSummary(app.out, stats, client.PaginationSummary(), mode)
	return nil
}

func printSummary(w io.Writer, stats *deps.RunStats, pag jira.PaginationSummary, mode string) {
	color.New(color.Bold).Fprintln(w, "----- SUMMARY -----")
	fmt.Fprintf(w, "Issues scanned: %d\n", stats.IssuesScanned)
	fmt.Fprintf(w, "Dependencies found: %d\n", stats.DependenciesFound)
	fmt.Fprintf(w, "Labels added: %d\n", stats.LabelsAdded)
	fmt.Fprintf(w, "Labels removed: %d\n", stats.LabelsRemoved)
	fmt.Fprintf(w, "Search queries executed: %d\n", pag.QueriesExecuted)
	fmt.Fprintf(w, "Search pages fetched: %d\n", pag.PagesFetched)
	fmt.Fprintf(w, "Search issues fetched: %d\n", pag.IssuesFetched)
	fmt.Fprintf(w, "Pagination mismatches: %d\n", pag.ReportedTotalMismatches)
	fmt.Fprintf(w, "Mode: %s\n", mode)
}
