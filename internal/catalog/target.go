package catalog

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// DefaultBaseURL is the catalog site used to expand bare slugs.
const DefaultBaseURL = "https://gamedistribution.com"

const gamesSegment = "games"

// IsURL reports whether target is a full URL rather than a bare slug.
func IsURL(target string) bool {
	return strings.Contains(target, "://")
}

// Slug derives the catalog key for a target. Bare identifiers are trimmed of
// slashes; URLs yield the segment after "games", or the last path segment.
func Slug(target string) (string, error) {
	target = strings.TrimSpace(target)
	if !IsURL(target) {
		slug := strings.Trim(target, "/")
		if slug == "" {
			return "", fmt.Errorf("%w: empty slug", ErrInvalidTarget)
		}
		return slug, nil
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrInvalidTarget, target, err)
	}
	segments := pathSegments(parsed.Path)
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: cannot determine slug from %q", ErrInvalidTarget, target)
	}
	for i, seg := range segments {
		if seg != gamesSegment {
			continue
		}
		if i+1 >= len(segments) {
			return "", fmt.Errorf("%w: url lacks slug component: %q", ErrInvalidTarget, target)
		}
		return segments[i+1], nil
	}
	return segments[len(segments)-1], nil
}

// PageURL builds the detail page URL for a target. Query and fragment are
// dropped and the path always ends in a slash.
func PageURL(target, baseURL string) (string, error) {
	target = strings.TrimSpace(target)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	raw := target
	if !IsURL(target) {
		raw = strings.TrimRight(baseURL, "/") + "/" + gamesSegment + "/" + strings.Trim(target, "/") + "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrInvalidTarget, raw, err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("parse base url %q: %w", baseURL, err)
		}
		parsed.Host = base.Host
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

// ParseTargets reads newline-delimited targets, skipping blank lines and
// lines starting with '#'.
func ParseTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return targets, nil
}

func pathSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
