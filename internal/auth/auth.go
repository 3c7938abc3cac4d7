// Package auth resolves Jira credentials before any network activity:
// a personal access token from the environment or ~/.netrc, and the
// effective auth mode for the target deployment.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlanSobenes/jira-label-sync/internal/apperr"
	"github.com/AlanSobenes/jira-label-sync/internal/jira"
)

// ResolveToken returns the Jira PAT from the named environment
// variable, falling back to the ~/.netrc password for hostname.
func ResolveToken(tokenEnvVar, hostname string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnvVar)); token != "" {
		return token, nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if token, ok := tokenFromNetrc(filepath.Join(home, ".netrc"), hostname); ok {
			return token, nil
		}
	}

	return "", fmt.Errorf("%w: set %s in environment/.env or add the token as password in ~/.netrc for %s",
		apperr.ErrAuth, tokenEnvVar, hostname)
}

// tokenFromNetrc scans a netrc file for the machine entry matching
// hostname (or a default entry) and returns its password.
func tokenFromNetrc(path, hostname string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}

	matching := false
	password := ""
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "machine":
			if matching && password != "" {
				return password, true
			}
			i++
			matching = i < len(tokens) && tokens[i] == hostname
			password = ""
		case "default":
			if matching && password != "" {
				return password, true
			}
			matching = true
			password = ""
		case "password":
			i++
			if matching && i < len(tokens) {
				password = strings.TrimSpace(tokens[i])
			}
		case "login", "account", "macdef":
			i++
		}
	}
	if matching && password != "" {
		return password, true
	}
	return "", false
}

// ResolveMode maps the configured auth mode to basic or bearer. "auto"
// picks basic for Jira Cloud hosts and bearer for server deployments.
func ResolveMode(configured, hostname string) string {
	switch configured {
	case jira.AuthBasic, jira.AuthBearer:
		return configured
	}
	if jira.IsCloudHost(hostname) {
		return jira.AuthBasic
	}
	return jira.AuthBearer
}

// ResolveEmail returns the account email required for basic auth.
func ResolveEmail(emailEnvVar string) (string, error) {
	email := strings.TrimSpace(os.Getenv(emailEnvVar))
	if email == "" {
		return "", fmt.Errorf("%w: auth mode is basic but %s is not set; set your Jira account email",
			apperr.ErrAuth, emailEnvVar)
	}
	return email, nil
}
