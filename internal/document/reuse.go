package document

import "net/url"

// CanReuse reports whether a stored artifact URL is eligible for reuse at
// submit time. Only an absolute http(s) URL qualifies; anything else is a
// stale local-only reference and forces regeneration. Staleness is judged
// by URL shape alone, not by content hash.
func CanReuse(artifactURL string) bool {
	if artifactURL == "" {
		return false
	}
	parsed, err := url.Parse(artifactURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}
