package allowlist

import (
	"strings"

	"go.uber.org/zap"
)

// defaultDomains is a small static set of very common legitimate
// registrable domains. URLs on these domains are still reported, just not
// counted as suspicious.
var defaultDomains = []string{
	"google.com",
	"microsoft.com",
	"apple.com",
	"amazon.com",
	"paypal.com",
	"github.com",
	"linkedin.com",
	"facebook.com",
	"twitter.com",
	"youtube.com",
	"dropbox.com",
	"adobe.com",
	"salesforce.com",
	"office.com",
	"live.com",
	"zoom.us",
	"slack.com",
	"docusign.com",
	"wikipedia.org",
}

// Checker answers whether a registrable domain is allow-listed
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a checker over the default set plus any extra
// configured domains
func NewChecker(extra []string, logger *zap.Logger) *Checker {
	domains := make(map[string]struct{}, len(defaultDomains)+len(extra))
	for _, d := range defaultDomains {
		domains[d] = struct{}{}
	}
	for _, d := range extra {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains[d] = struct{}{}
		}
	}

	if len(extra) > 0 && logger != nil {
		logger.Info("Extended domain allow-list", zap.Strings("extra", extra))
	}

	return &Checker{
		domains: domains,
		logger:  logger,
	}
}

// IsAllowed checks a registrable domain against the allow-list
func (c *Checker) IsAllowed(domain string) bool {
	_, ok := c.domains[strings.ToLower(domain)]
	return ok
}
