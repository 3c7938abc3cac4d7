package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AlanSobenes/jira-label-sync/internal/apperr"
)

// Auth modes the client understands. Mode resolution ("auto") happens
// in the auth package before a client is constructed.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// maxAttempts bounds every request: one initial try plus three retries.
const maxAttempts = 4

const maxErrorBody = 400

// Options configures a Client. AuthMode must already be resolved to
// basic or bearer.
type Options struct {
	BaseURL  string
	AuthMode string
	Email    string
	Token    string
	PageSize int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client talks to one Jira deployment. It is not safe for concurrent
// use: the pagination summary is a plain accumulator owned by the
// single execution path of one run.
type Client struct {
	baseURL  string
	authMode string
	email    string
	token    string
	pageSize int
	isCloud  bool
	http     *http.Client
	logger   *slog.Logger
	summary  PaginationSummary

	// Injection points for retry tests.
	sleep      func(time.Duration)
	newBackoff func() backoff.BackOff
}

// NewClient creates a client for the deployment at opts.BaseURL.
// Hosts under *.atlassian.net are treated as Jira Cloud: v3 API paths
// and token-based search pagination instead of offsets.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("jira: parse base URL: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		authMode:   opts.AuthMode,
		email:      opts.Email,
		token:      opts.Token,
		pageSize:   opts.PageSize,
		isCloud:    IsCloudHost(u.Hostname()),
		http:       &http.Client{Timeout: opts.Timeout},
		logger:     logger,
		sleep:      time.Sleep,
		newBackoff: newRetryBackoff,
	}, nil
}

// IsCloudHost reports whether hostname belongs to a Jira Cloud
// deployment.
func IsCloudHost(hostname string) bool {
	return strings.HasSuffix(hostname, ".atlassian.net")
}

// newRetryBackoff returns the interval source for one request's
// retries: 1s, 2s, 4s with no jitter, so retry timing is reproducible.
// BackOff implementations are stateful; always return a fresh instance.
func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryDelay prefers the server-supplied Retry-After over the local
// backoff schedule.
func retryDelay(retryAfter string, bo backoff.BackOff) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return bo.NextBackOff()
}

// do executes one request with bounded retry on 429/500/502/503/504.
// Any other >=400 status, or a retryable one surviving the budget,
// fails with the status code and a truncated response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("jira: encode %s %s: %w", method, path, err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	bo := c.newBackoff()
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("jira: build %s %s: %w", method, path, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if c.authMode == AuthBasic {
			req.SetBasicAuth(c.email, c.token)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("jira: %s %s: %w", method, path, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if retryableStatus(resp.StatusCode) && attempt < maxAttempts {
			delay := retryDelay(resp.Header.Get("Retry-After"), bo)
			c.logger.Warn("jira: transient API error, retrying",
				slog.Int("status", resp.StatusCode),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			c.sleep(delay)
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &apperr.APIError{
				Status: resp.StatusCode,
				Path:   path,
				Body:   truncate(string(data), maxErrorBody),
			}
		}
		if readErr != nil {
			return nil, fmt.Errorf("jira: read %s %s response: %w", method, path, readErr)
		}
		return data, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

type searchResponse struct {
	Issues        []Issue `json:"issues"`
	Total         *int    `json:"total,omitempty"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Search runs a JQL query to exhaustion, selecting the pagination
// protocol for the target deployment. name identifies the query in
// diagnostics and logs.
func (c *Client) Search(ctx context.Context, jql string, fields []string, name string) ([]Issue, SearchDiagnostics, error) {
	var (
		issues []Issue
		diag   SearchDiagnostics
		err    error
	)
	if c.isCloud {
		issues, diag, err = c.searchToken(ctx, jql, fields, name)
	} else {
		issues, diag, err = c.searchOffset(ctx, jql, fields, name)
	}
	if err != nil {
		return nil, diag, err
	}

	c.summary.record(diag)
	if diag.Mismatch() {
		c.logger.Warn("jira: search total/fetched mismatch",
			slog.String("query", diag.Query),
			slog.Int("reported_total", diag.ReportedTotal),
			slog.Int("fetched", diag.IssuesFetched))
	}
	c.logger.Debug("jira: search complete",
		slog.String("query", diag.Query),
		slog.String("mode", diag.Mode),
		slog.Int("pages", diag.Pages),
		slog.Int("issues", diag.IssuesFetched),
		slog.String("stopped", string(diag.StoppedReason)))
	return issues, diag, nil
}

// searchOffset paginates with explicit start offsets against the
// server (v2) search endpoint.
func (c *Client) searchOffset(ctx context.Context, jql string, fields []string, name string) ([]Issue, SearchDiagnostics, error) {
	diag := SearchDiagnostics{Query: name, Mode: "offset"}
	var issues []Issue
	startAt := 0

	for {
		body := searchRequest{JQL: jql, StartAt: startAt, MaxResults: c.pageSize, Fields: fields}
		data, err := c.do(ctx, http.MethodPost, "/rest/api/2/search", nil, body)
		if err != nil {
			return nil, diag, err
		}
		var page searchResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, diag, fmt.Errorf("jira: decode search page for %s: %w", name, err)
		}

		diag.Pages++
		issues = append(issues, page.Issues...)
		diag.IssuesFetched = len(issues)
		if page.Total != nil {
			diag.HasTotal = true
			diag.ReportedTotal = *page.Total
		}

		if len(page.Issues) == 0 {
			diag.StoppedReason = StopEmptyPage
			break
		}
		startAt += len(page.Issues)
		if diag.HasTotal && startAt >= diag.ReportedTotal {
			diag.StoppedReason = StopReportedTotal
			break
		}
	}
	return issues, diag, nil
}

// searchToken paginates with opaque continuation tokens against the
// cloud (v3) search endpoint.
func (c *Client) searchToken(ctx context.Context, jql string, fields []string, name string) ([]Issue, SearchDiagnostics, error) {
	diag := SearchDiagnostics{Query: name, Mode: "token"}
	var issues []Issue
	token := ""

	for {
		query := url.Values{
			"jql":        {jql},
			"maxResults": {strconv.Itoa(c.pageSize)},
			"fields":     {strings.Join(fields, ",")},
		}
		if token != "" {
			query.Set("nextPageToken", token)
		}
		data, err := c.do(ctx, http.MethodGet, "/rest/api/3/search/jql", query, nil)
		if err != nil {
			return nil, diag, err
		}
		var page searchResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, diag, fmt.Errorf("jira: decode search page for %s: %w", name, err)
		}

		diag.Pages++
		issues = append(issues, page.Issues...)
		diag.IssuesFetched = len(issues)
		if page.Total != nil {
			diag.HasTotal = true
			diag.ReportedTotal = *page.Total
		}

		if len(page.Issues) == 0 {
			diag.StoppedReason = StopEmptyPage
			break
		}
		if page.NextPageToken == "" {
			diag.StoppedReason = StopNextTokenExhausted
			break
		}
		token = page.NextPageToken
	}
	return issues, diag, nil
}

// GetIssue fetches one issue with an explicit field projection.
func (c *Client) GetIssue(ctx context.Context, key string, fields []string) (Issue, error) {
	query := url.Values{"fields": {strings.Join(fields, ",")}}
	data, err := c.do(ctx, http.MethodGet, c.apiBase()+"/issue/"+key, query, nil)
	if err != nil {
		return Issue{}, err
	}
	var issue Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return Issue{}, fmt.Errorf("jira: decode issue %s: %w", key, err)
	}
	return issue, nil
}

type labelOp struct {
	Add    string `json:"add,omitempty"`
	Remove string `json:"remove,omitempty"`
}

type labelPatch struct {
	Update struct {
		Labels []labelOp `json:"labels"`
	} `json:"update"`
}

// UpdateLabels sends a label patch expressing exactly the given add and
// remove operations, lexicographically sorted for reproducible request
// bodies. A call with nothing to change skips the network entirely.
func (c *Client) UpdateLabels(ctx context.Context, key string, add, remove []string) error {
	var ops []labelOp
	for _, label := range sortedCopy(add) {
		ops = append(ops, labelOp{Add: label})
	}
	for _, label := range sortedCopy(remove) {
		ops = append(ops, labelOp{Remove: label})
	}
	if len(ops) == 0 {
		return nil
	}

	var body labelPatch
	body.Update.Labels = ops
	_, err := c.do(ctx, http.MethodPut, c.apiBase()+"/issue/"+key, nil, body)
	return err
}

// PaginationSummary returns the per-run pagination totals accumulated
// so far.
func (c *Client) PaginationSummary() PaginationSummary {
	return c.summary
}

func (c *Client) apiBase() string {
	if c.isCloud {
		return "/rest/api/3"
	}
	return "/rest/api/2"
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
