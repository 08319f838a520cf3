// Package release fetches latest-release metadata from a GitHub-style
// releases feed. Everything here is best effort: the console renders
// normally when the feed is slow, missing or rate-limited.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Fetch failures the caller may want to present differently.
var (
	ErrNoReleases = errors.New("no releases found")
	ErrRateLimit  = errors.New("release feed rate limited")
)

const (
	// FetchTimeout bounds the whole request.
	FetchTimeout = 10 * time.Second

	maxVersionLen = 20
	maxBodyLen    = 5000
	maxNotes      = 10
	maxNoteLen    = 200
)

// Info is the sanitized latest-release metadata.
type Info struct {
	Version     string
	Notes       []string
	PublishedAt time.Time
}

// Client fetches release metadata for one repository.
type Client struct {
	// FeedURL is the full releases/latest endpoint. When empty, Latest
	// reports ErrNoReleases without a network round trip.
	FeedURL string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// FeedFor returns the GitHub releases/latest endpoint for an owner/repo
// pair.
func FeedFor(repo string) string {
	return "https://api.github.com/repos/" + repo + "/releases/latest"
}

// PageFor returns the browsable releases page for an owner/repo pair, used
// as the download fallback when the feed is unavailable.
func PageFor(repo string) string {
	return "https://github.com/" + repo + "/releases"
}

// Latest fetches and sanitizes the most recent release.
func (c *Client) Latest(ctx context.Context) (Info, error) {
	if c.FeedURL == "" {
		return Info{}, ErrNoReleases
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedURL, nil)
	if err != nil {
		return Info{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	httpc := c.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Info{}, ErrNoReleases
	case resp.StatusCode == http.StatusForbidden:
		return Info{}, ErrRateLimit
	case resp.StatusCode != http.StatusOK:
		return Info{}, fmt.Errorf("release feed returned %d", resp.StatusCode)
	}

	var raw struct {
		TagName     string    `json:"tag_name"`
		Body        string    `json:"body"`
		PublishedAt time.Time `json:"published_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Info{}, err
	}

	return Info{
		Version:     SanitizeVersion(raw.TagName),
		Notes:       ParseNotes(raw.Body),
		PublishedAt: raw.PublishedAt,
	}, nil
}

var versionChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeVersion strips a tag down to alphanumerics, dots and hyphens,
// capped at 20 characters. An empty tag falls back to a generic label.
func SanitizeVersion(version string) string {
	if version == "" {
		return "Latest Version"
	}
	v := versionChars.ReplaceAllString(version, "")
	if len(v) > maxVersionLen {
		v = v[:maxVersionLen]
	}
	if v == "" {
		return "Latest Version"
	}
	return v
}

var (
	markdownLink  = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	bareLink      = regexp.MustCompile(`^\[.*?\]\(http.*?\)$`)
	plainURL      = regexp.MustCompile(`https?://[^\s)]+`)
	listMarker    = regexp.MustCompile(`^[\s\-*+]+`)
	orderedMarker = regexp.MustCompile(`^\d+\.\s*`)
	inlineCode    = regexp.MustCompile("`[^`]*`")
	htmlTag       = regexp.MustCompile(`<[^>]*>`)
	emptyParens   = regexp.MustCompile(`\(\s*\)`)
	parenDate     = regexp.MustCompile(`\(\d{4}-\d{2}-\d{2}\)`)
)

// ParseNotes extracts up to 10 plain-text bullet points from a markdown
// release body. Headers, link-only lines, code and HTML are dropped; the
// body is truncated before parsing so a hostile feed cannot balloon the
// work.
func ParseNotes(body string) []string {
	if body == "" {
		return nil
	}
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}

	var notes []string
	for _, line := range strings.Split(body, "\n") {
		if len(notes) >= maxNotes {
			break
		}
		cleaned := strings.TrimSpace(line)
		if cleaned == "" || strings.HasPrefix(cleaned, "#") || bareLink.MatchString(cleaned) {
			continue
		}

		cleaned = listMarker.ReplaceAllString(cleaned, "")
		cleaned = orderedMarker.ReplaceAllString(cleaned, "")
		cleaned = markdownLink.ReplaceAllString(cleaned, "$1")
		cleaned = plainURL.ReplaceAllString(cleaned, "")
		cleaned = inlineCode.ReplaceAllString(cleaned, "")
		cleaned = htmlTag.ReplaceAllString(cleaned, "")
		cleaned = emptyParens.ReplaceAllString(cleaned, "")
		cleaned = parenDate.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)

		if len(cleaned) > 3 && len(cleaned) < maxNoteLen {
			notes = append(notes, cleaned)
		}
	}
	return notes
}
