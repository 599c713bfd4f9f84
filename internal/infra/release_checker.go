package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	githubOwner      = "eliteGoblin"
	githubRepo       = "focusd"
	githubAPIURL     = "https://api.github.com/repos/%s/%s/releases/latest"
	githubAPITimeout = 30 * time.Second
)

// GitHubRelease is the part of the latest-release response we read.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// UpdateInfo is the result of a version check.
type UpdateInfo struct {
	Current   string
	Latest    string
	URL       string
	Available bool
}

// ReleaseChecker compares the running version with the latest GitHub release.
// It is the only component that talks to the network, and only on demand.
type ReleaseChecker struct {
	client *http.Client
	url    string
}

// NewReleaseChecker creates a checker for the project's release feed.
func NewReleaseChecker() *ReleaseChecker {
	return &ReleaseChecker{
		client: &http.Client{},
		url:    fmt.Sprintf(githubAPIURL, githubOwner, githubRepo),
	}
}

// NewReleaseCheckerWithURL creates a checker against a custom endpoint (for testing).
func NewReleaseCheckerWithURL(client *http.Client, url string) *ReleaseChecker {
	return &ReleaseChecker{client: client, url: url}
}

// LatestRelease fetches the latest release info.
func (c *ReleaseChecker) LatestRelease(ctx context.Context) (*GitHubRelease, error) {
	ctx, cancel := context.WithTimeout(ctx, githubAPITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "replaymon")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse release: %w", err)
	}
	return &release, nil
}

// Check reports whether a release newer than current exists.
func (c *ReleaseChecker) Check(ctx context.Context, current string) (*UpdateInfo, error) {
	release, err := c.LatestRelease(ctx)
	if err != nil {
		return nil, err
	}
	latest := normalizeVersion(release.TagName)
	return &UpdateInfo{
		Current:   current,
		Latest:    latest,
		URL:       release.HTMLURL,
		Available: isNewerVersion(latest, normalizeVersion(current)),
	}, nil
}

// normalizeVersion strips a "v" prefix and any pre-release or build suffix.
func normalizeVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return v
}

// isNewerVersion compares two dotted versions numerically, returns true if candidate > current.
// An empty current version (e.g. a dev build) is never considered outdated.
func isNewerVersion(candidate, current string) bool {
	if current == "" || current == "dev" {
		return false
	}

	candidateParts := strings.Split(candidate, ".")
	currentParts := strings.Split(current, ".")

	maxLen := len(candidateParts)
	if len(currentParts) > maxLen {
		maxLen = len(currentParts)
	}

	for i := 0; i < maxLen; i++ {
		var a, b int
		if i < len(candidateParts) {
			a, _ = strconv.Atoi(candidateParts[i])
		}
		if i < len(currentParts) {
			b, _ = strconv.Atoi(currentParts[i])
		}
		if a != b {
			return a > b
		}
	}
	return false
}
