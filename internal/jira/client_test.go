package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AlanSobenes/jira-label-sync/internal/apperr"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:  srv.URL,
		AuthMode: AuthBearer,
		Token:    "test-token",
		PageSize: 2,
		Timeout:  5 * time.Second,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}

	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func issueKeys(issues []Issue) []string {
	keys := make([]string, len(issues))
	for i, issue := range issues {
		keys[i] = issue.Key
	}
	return keys
}

func TestSearch_OffsetPagination(t *testing.T) {
	all := []Issue{{Key: "P-1"}, {Key: "P-2"}, {Key: "P-3"}, {Key: "P-4"}, {Key: "P-5"}}
	total := len(all)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/2/search" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		end := req.StartAt + req.MaxResults
		if end > total {
			end = total
		}
		writeJSON(t, w, searchResponse{Issues: all[req.StartAt:end], Total: &total})
	})

	c, _ := newTestClient(t, handler)
	issues, diag, err := c.Search(context.Background(), "project = P", []string{"labels"}, "core_scope")
	if err != nil {
		t.Fatal(err)
	}

	keys := issueKeys(issues)
	if strings.Join(keys, ",") != "P-1,P-2,P-3,P-4,P-5" {
		t.Errorf("keys = %v", keys)
	}
	if diag.Pages != 3 {
		t.Errorf("pages = %d, want 3", diag.Pages)
	}
	if diag.StoppedReason != StopReportedTotal {
		t.Errorf("stop reason = %q, want %q", diag.StoppedReason, StopReportedTotal)
	}
	if diag.Mismatch() {
		t.Error("no mismatch expected when total matches fetched")
	}

	sum := c.PaginationSummary()
	if sum.QueriesExecuted != 1 || sum.PagesFetched != 3 || sum.IssuesFetched != 5 || sum.ReportedTotalMismatches != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSearch_OffsetEmptyPageMismatch(t *testing.T) {
	total := 10
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(t, w, searchResponse{Issues: []Issue{{Key: "P-1"}, {Key: "P-2"}}, Total: &total})
			return
		}
		writeJSON(t, w, searchResponse{Issues: nil, Total: &total})
	})

	c, _ := newTestClient(t, handler)
	issues, diag, err := c.Search(context.Background(), "project = P", nil, "core_scope")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 2 {
		t.Errorf("issues = %d, want 2", len(issues))
	}
	if diag.StoppedReason != StopEmptyPage {
		t.Errorf("stop reason = %q, want %q", diag.StoppedReason, StopEmptyPage)
	}
	if !diag.Mismatch() {
		t.Error("mismatch expected: total 10, fetched 2")
	}
	if sum := c.PaginationSummary(); sum.ReportedTotalMismatches != 1 {
		t.Errorf("mismatch count = %d, want 1", sum.ReportedTotalMismatches)
	}
}

func TestSearch_TokenPagination(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rest/api/3/search/jql" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		calls++
		switch calls {
		case 1:
			if r.URL.Query().Get("nextPageToken") != "" {
				t.Error("first page should carry no token")
			}
			writeJSON(t, w, searchResponse{Issues: []Issue{{Key: "C-1"}, {Key: "C-2"}}, NextPageToken: "tok-1"})
		case 2:
			if got := r.URL.Query().Get("nextPageToken"); got != "tok-1" {
				t.Errorf("token = %q, want tok-1", got)
			}
			writeJSON(t, w, searchResponse{Issues: []Issue{{Key: "C-3"}}})
		default:
			t.Errorf("unexpected extra page request %d", calls)
		}
	})

	c, _ := newTestClient(t, handler)
	c.isCloud = true
	issues, diag, err := c.Search(context.Background(), "project = C", []string{"labels", "status"}, "labeled_issues")
	if err != nil {
		t.Fatal(err)
	}

	keys := issueKeys(issues)
	if strings.Join(keys, ",") != "C-1,C-2,C-3" {
		t.Errorf("keys = %v", keys)
	}
	if diag.Mode != "token" || diag.Pages != 2 {
		t.Errorf("diag = %+v", diag)
	}
	if diag.StoppedReason != StopNextTokenExhausted {
		t.Errorf("stop reason = %q, want %q", diag.StoppedReason, StopNextTokenExhausted)
	}
}

func TestSearch_TokenEmptyFirstPage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, searchResponse{})
	})
	c, _ := newTestClient(t, handler)
	c.isCloud = true
	issues, diag, err := c.Search(context.Background(), "project = C", nil, "labeled_issues")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 || diag.StoppedReason != StopEmptyPage {
		t.Errorf("issues = %d, reason = %q", len(issues), diag.StoppedReason)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, Issue{Key: "P-9"})
	})

	c, sleeps := newTestClient(t, handler)
	issue, err := c.GetIssue(context.Background(), "P-9", []string{"labels", "status"})
	if err != nil {
		t.Fatalf("request should recover: %v", err)
	}
	if issue.Key != "P-9" {
		t.Errorf("key = %q", issue.Key)
	}
	if requests != 4 {
		t.Errorf("requests = %d, want 4", requests)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestRetry_Exhausted(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})

	c, sleeps := newTestClient(t, handler)
	_, err := c.GetIssue(context.Background(), "P-9", nil)
	if err == nil {
		t.Fatal("exhausted retries should fail")
	}
	if requests != 4 {
		t.Errorf("requests = %d, want exactly 4 attempts", requests)
	}
	if len(*sleeps) != 3 {
		t.Errorf("sleeps = %d, want 3", len(*sleeps))
	}
	var apiErr *apperr.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, Issue{Key: "P-1"})
	})

	c, sleeps := newTestClient(t, handler)
	if _, err := c.GetIssue(context.Background(), "P-1", nil); err != nil {
		t.Fatal(err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 7*time.Second {
		t.Errorf("sleeps = %v, want [7s]", *sleeps)
	}
}

func TestRequest_PermanentErrorNoRetry(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "no such issue", http.StatusNotFound)
	})

	c, sleeps := newTestClient(t, handler)
	_, err := c.GetIssue(context.Background(), "P-404", nil)
	if err == nil {
		t.Fatal("404 should fail")
	}
	if requests != 1 || len(*sleeps) != 0 {
		t.Errorf("requests = %d, sleeps = %d; 4xx must not retry", requests, len(*sleeps))
	}
	var apiErr *apperr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if apiErr.Status != http.StatusNotFound || !strings.Contains(apiErr.Body, "no such issue") {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestRequest_ErrorBodyTruncated(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, strings.Repeat("x", 2000))
	})

	c, _ := newTestClient(t, handler)
	_, err := c.GetIssue(context.Background(), "P-1", nil)
	var apiErr *apperr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apiErr.Body) != maxErrorBody {
		t.Errorf("body length = %d, want %d", len(apiErr.Body), maxErrorBody)
	}
}

func TestGetIssue_FieldProjection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/P-7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fields"); got != "labels,status" {
			t.Errorf("fields = %q", got)
		}
		writeJSON(t, w, Issue{Key: "P-7", Fields: IssueFields{
			Status: &Status{Name: "Open"},
			Labels: []string{"dep-core"},
		}})
	})

	c, _ := newTestClient(t, handler)
	issue, err := c.GetIssue(context.Background(), "P-7", []string{"labels", "status"})
	if err != nil {
		t.Fatal(err)
	}
	if issue.StatusName() != "Open" || len(issue.Fields.Labels) != 1 {
		t.Errorf("issue = %+v", issue)
	}
}

func TestUpdateLabels_SortedPatch(t *testing.T) {
	var body []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/rest/api/2/issue/P-3" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, handler)
	err := c.UpdateLabels(context.Background(), "P-3", []string{"zeta", "alpha"}, []string{"old-label"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"update":{"labels":[{"add":"alpha"},{"add":"zeta"},{"remove":"old-label"}]}}`
	if strings.TrimSpace(string(body)) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestUpdateLabels_NoOpSkipsNetwork(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, handler)
	if err := c.UpdateLabels(context.Background(), "P-3", nil, nil); err != nil {
		t.Fatal(err)
	}
	if requests != 0 {
		t.Errorf("requests = %d, want network skipped", requests)
	}
}

func TestIsCloudHost(t *testing.T) {
	if !IsCloudHost("acme.atlassian.net") {
		t.Error("atlassian.net host should be cloud")
	}
	if IsCloudHost("jira.corp.example.com") {
		t.Error("server host should not be cloud")
	}
}
