package tools

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"golang.org/x/net/publicsuffix"
)

// urlPattern is the single shared pattern for URL-shaped substrings in
// both the plaintext body and the HTML
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// contextWindow is roughly how many characters of surrounding body text
// each URL is annotated with
const contextWindow = 100

// extractedURL is one URL found in the email
type extractedURL struct {
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Allowlisted bool   `json:"allowlisted"`
	Context     string `json:"context"`
}

// extractURLsPayload is the tool-specific result shape
type extractURLsPayload struct {
	URLs           []extractedURL `json:"urls"`
	Total          int            `json:"total"`
	NonAllowlisted int            `json:"non_allowlisted"`
}

// extractURLs scans the body and HTML for URLs, deduplicates exact
// matches, resolves registrable domains and classifies them against the
// allow-list. It never fails; a URL that cannot be parsed is skipped
// rather than aborting the whole call.
func extractURLs(email *core.NormalizedEmail, allow *allowlist.Checker) *core.ToolOutcome {
	payload := extractURLsPayload{URLs: []extractedURL{}}
	seen := make(map[string]struct{})

	for _, source := range []string{email.Body, email.HTMLBody} {
		for _, loc := range urlPattern.FindAllStringIndex(source, -1) {
			raw := strings.TrimRight(source[loc[0]:loc[1]], ".,;:")
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}

			parsed, err := url.Parse(raw)
			if err != nil || parsed.Hostname() == "" {
				continue
			}

			domain := registrableDomain(parsed.Hostname())
			payload.URLs = append(payload.URLs, extractedURL{
				URL:         raw,
				Domain:      domain,
				Allowlisted: allow.IsAllowed(domain),
				Context:     clipContext(source, loc[0], loc[0]+len(raw)),
			})
		}
	}

	payload.Total = len(payload.URLs)
	for _, u := range payload.URLs {
		if !u.Allowlisted {
			payload.NonAllowlisted++
		}
	}
	return successOutcome(sourceLocal, payload)
}

// registrableDomain resolves the eTLD+1 for a hostname, falling back to
// the lowercased hostname when the public suffix list cannot place it
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// clipContext returns the surrounding text for a match, clipped at string
// boundaries rather than word boundaries
func clipContext(source string, start, end int) string {
	half := contextWindow / 2
	from := start - half
	if from < 0 {
		from = 0
	}
	to := end + half
	if to > len(source) {
		to = len(source)
	}
	return source[from:to]
}
