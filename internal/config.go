package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeAuto   = "auto"
	AuthModeBasic  = "basic"
	AuthModeBearer = "bearer"
)

// Link directions.
const (
	DirectionInward  = "inward"
	DirectionOutward = "outward"
)

// Config represents the application configuration. It is assembled once
// at startup and passed by reference into every component; nothing
// reads ambient process state after that.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Jira   JiraConfig        `yaml:"jira"`
	Labels LabelConfig       `yaml:"labels"`
	Links  LinkConfig        `yaml:"links"`
	Scope  ScopeConfig       `yaml:"scope"`
}

// Validate validates and normalizes the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Jira.Validate(); err != nil {
		return err
	}
	if err := c.Labels.Validate(); err != nil {
		return err
	}
	if err := c.Links.Validate(); err != nil {
		return err
	}
	return c.Scope.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	AuditDir string     `yaml:"audit_dir"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AuditDir, validation.Required),
	)
}

// JiraConfig holds the connection and scope settings for the target
// Jira deployment. Exactly one of CoreFilterID/CoreJQL defines the
// core scope.
type JiraConfig struct {
	BaseURL               string `yaml:"base_url"`
	AuthMode              string `yaml:"auth_mode"`
	TokenEnvVar           string `yaml:"token_env_var"`
	EmailEnvVar           string `yaml:"email_env_var"`
	CoreFilterID          string `yaml:"core_filter_id"`
	CoreJQL               string `yaml:"core_jql"`
	PageSize              int    `yaml:"page_size"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// Validate validates the Jira configuration.
func (c *JiraConfig) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.CoreFilterID = strings.TrimSpace(c.CoreFilterID)
	c.CoreJQL = strings.TrimSpace(c.CoreJQL)
	if c.AuthMode == "" {
		c.AuthMode = AuthModeAuto
	}

	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(checkURL)),
		validation.Field(&c.AuthMode, validation.In(AuthModeAuto, AuthModeBasic, AuthModeBearer)),
		validation.Field(&c.TokenEnvVar, validation.Required),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.RequestTimeoutSeconds, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}

	if c.CoreFilterID == "" && c.CoreJQL == "" {
		return fmt.Errorf("jira: set one of core_filter_id or core_jql")
	}
	if c.CoreFilterID != "" && c.CoreJQL != "" {
		return fmt.Errorf("jira: set only one of core_filter_id or core_jql, not both")
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c *JiraConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Hostname returns the host part of the base URL.
func (c *JiraConfig) Hostname() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func checkURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing hostname")
	}
	return nil
}

// LabelConfig holds the tracked label family: the canonical dependency
// label plus any deprecated aliases to migrate away from.
type LabelConfig struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// Validate validates the label configuration. Aliases are deduplicated
// case-insensitively and any alias equal to the canonical label is
// dropped.
func (c *LabelConfig) Validate() error {
	c.Canonical = strings.TrimSpace(c.Canonical)
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Canonical, validation.Required),
	); err != nil {
		return err
	}

	var aliases []string
	seen := map[string]struct{}{strings.ToLower(c.Canonical): {}}
	for _, alias := range c.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		key := strings.ToLower(alias)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		aliases = append(aliases, alias)
	}
	c.Aliases = aliases
	return nil
}

// LinkConfig holds the link-classification rules. When TypeIDs is
// non-empty it takes precedence over Types; ignore rules always
// override authority.
type LinkConfig struct {
	Types          []string `yaml:"types"`
	TypeIDs        []string `yaml:"type_ids"`
	Directions     []string `yaml:"directions"`
	IgnoredTypeIDs []string `yaml:"ignored_type_ids"`
	IgnoredNames   []string `yaml:"ignored_names"`
}

// Validate validates and normalizes the link configuration. Type names,
// directions, and ignored names are lowercased and deduplicated in
// order.
func (c *LinkConfig) Validate() error {
	c.Types = dedupeFold(c.Types)
	c.TypeIDs = dedupeExact(c.TypeIDs)
	c.Directions = dedupeFold(c.Directions)
	c.IgnoredTypeIDs = dedupeExact(c.IgnoredTypeIDs)
	c.IgnoredNames = dedupeFold(c.IgnoredNames)

	if err := validation.ValidateStruct(c,
		validation.Field(&c.Directions,
			validation.Required,
			validation.Each(validation.In(DirectionInward, DirectionOutward))),
	); err != nil {
		return err
	}
	if len(c.Types) == 0 && len(c.TypeIDs) == 0 {
		return fmt.Errorf("links: set types or type_ids")
	}
	return nil
}

// ScopeConfig defines core-scope membership: issue types that belong,
// statuses that never do.
type ScopeConfig struct {
	CoreIssueTypes  []string `yaml:"core_issue_types"`
	IgnoredStatuses []string `yaml:"ignored_statuses"`
}

// Validate validates the scope configuration.
func (c *ScopeConfig) Validate() error {
	c.CoreIssueTypes = dedupeExact(c.CoreIssueTypes)
	c.IgnoredStatuses = dedupeExact(c.IgnoredStatuses)
	return validation.ValidateStruct(c,
		validation.Field(&c.CoreIssueTypes, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
// The base URL and core scope have no defaults and must be configured.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			AuditDir: "audit_logs",
		},
		Jira: JiraConfig{
			AuthMode:              AuthModeAuto,
			TokenEnvVar:           "JIRA_PAT",
			EmailEnvVar:           "JIRA_EMAIL",
			PageSize:              100,
			RequestTimeoutSeconds: 30,
		},
		Labels: LabelConfig{
			Canonical: "DFS_CORE_Dependencies",
		},
		Links: LinkConfig{
			Types:        []string{"blocks", "is blocked by", "depends on", "is dependent on", "is a dependency of"},
			Directions:   []string{DirectionInward, DirectionOutward},
			IgnoredNames: []string{"clones", "is cloned by"},
		},
		Scope: ScopeConfig{
			CoreIssueTypes:  []string{"Initiative", "Epic", "Story"},
			IgnoredStatuses: []string{"Canceled"},
		},
	}
}

// dedupeExact removes duplicates preserving order, trimming whitespace
// and dropping empties.
func dedupeExact(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// dedupeFold is dedupeExact with lowercasing.
func dedupeFold(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
