package plan

import (
	"net/url"
	"strings"
)

// aliasDomains maps deprecated domains to the canonical domain the engine's
// extractors recognise.
var aliasDomains = map[string]string{
	"threads.com": "threads.net",
}

// acceleratorDenyList holds hosts that reject or throttle multi-connection
// fetching.
var acceleratorDenyList = []string{
	"threads.net",
	"instagram.com",
}

// sponsorSegmentHosts are platforms with community ad-segment metadata.
var sponsorSegmentHosts = []string{
	"youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
}

// NormalizeURL strips the query string, adds https:// when the scheme is
// missing and rewrites deprecated alias domains. It is idempotent.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)

	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}

	u, err := url.Parse(withScheme(raw))
	if err != nil || u.Host == "" {
		return raw
	}

	raw = withScheme(raw)

	hostname := u.Hostname()
	lower := strings.ToLower(hostname)

	for alias, canonical := range aliasDomains {
		if !hostMatches(lower, alias) {
			continue
		}

		rewritten := lower[:len(lower)-len(alias)] + canonical

		return strings.Replace(raw, hostname, rewritten, 1)
	}

	return raw
}

// Host returns the lower-cased hostname of raw, or "" when it has none.
func Host(raw string) string {
	u, err := url.Parse(withScheme(strings.TrimSpace(raw)))
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

// withScheme prefixes https:// to a non-empty raw url that has no scheme.
func withScheme(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}

	return "https://" + raw
}

// AcceleratorAllowed reports whether host tolerates multi-connection fetching.
func AcceleratorAllowed(host string) bool {
	return !hostInList(host, acceleratorDenyList)
}

// SupportsSponsorSegments reports whether host publishes ad-segment metadata.
func SupportsSponsorSegments(host string) bool {
	return hostInList(host, sponsorSegmentHosts)
}

func hostInList(host string, domains []string) bool {
	for _, d := range domains {
		if hostMatches(host, d) {
			return true
		}
	}

	return false
}

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
