package document

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// SiteOrigin is prefixed to relative links found on the page.
const SiteOrigin = "https://x.com"

var (
	statusIDRe = regexp.MustCompile(`/status/(\d+)`)
	handleRe   = regexp.MustCompile(`@([A-Za-z0-9_]{1,15})`)
	spaceRe    = regexp.MustCompile(`\s+`)
	mediaName  = regexp.MustCompile(`name=[^&]+`)
)

// StatusID extracts the numeric status id from a post URL or path.
func StatusID(s string) string {
	m := statusIDRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// postHosts are the hosts that serve status pages.
var postHosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// ParsePostURL validates a post URL on x.com or twitter.com and returns its
// status id.
func ParsePostURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, raw)
	}
	if !postHosts[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("%w: %q is not an x.com or twitter.com url", ErrInvalidURL, raw)
	}
	sid := StatusID(u.Path)
	if sid == "" {
		return "", fmt.Errorf("%w: %q has no status id", ErrInvalidURL, raw)
	}
	return sid, nil
}

// Handle extracts the lower-cased @handle from a user-name line.
func Handle(userText string) string {
	m := handleRe.FindStringSubmatch(userText)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// CleanText collapses whitespace runs and trims.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// AbsoluteURL resolves a site-relative href.
func AbsoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return SiteOrigin + href
	}
	return href
}

// NormalizeArticleURL canonicalizes an article link: absolute, no query, and
// article media sub-paths folded back onto the article itself.
func NormalizeArticleURL(href string) string {
	if href == "" {
		return ""
	}
	u := AbsoluteURL(href)
	u, _, _ = strings.Cut(u, "?")
	if strings.Contains(u, "/article/") {
		if base, _, found := strings.Cut(u, "/media/"); found {
			u = base
		}
	}
	return u
}

// NormalizeMediaURL requests the original resolution for formatted image URLs.
func NormalizeMediaURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Query().Get("format") != "" && strings.Contains(raw, "name=") {
		return mediaName.ReplaceAllString(raw, "name=orig")
	}
	return raw
}

// IsPostMedia reports whether a URL points at post media rather than avatars
// or emoji.
func IsPostMedia(u string) bool {
	return strings.Contains(u, "pbs.twimg.com/media/") ||
		strings.Contains(u, "pbs.twimg.com/ext_tw_video_thumb/")
}
