package tools

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

var (
	// addressPattern matches a fully-formed email address embedded in text
	addressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// substitutionDigit matches a look-alike digit with letters on both
	// sides; plain alphanumeric names ("b2b", "car24") do not match
	substitutionDigit = regexp.MustCompile(`[a-z][0135][a-z]|[a-z][0135]$|^[0135][a-z]`)
)

// freeMailProviders is the set of recognized free/webmail domains
var freeMailProviders = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"aol.com":        {},
	"mail.com":       {},
	"gmx.com":        {},
	"icloud.com":     {},
	"protonmail.com": {},
	"proton.me":      {},
	"yandex.com":     {},
	"zoho.com":       {},
}

// impersonatedBrands are the names checked in display names
var impersonatedBrands = []string{
	"paypal", "microsoft", "apple", "amazon", "google", "netflix",
	"facebook", "instagram", "chase", "wells fargo", "bank of america",
	"dhl", "fedex", "ups", "usps", "irs", "docusign", "adobe",
}

// typosquatVariants maps known look-alike domain labels to the brand they
// imitate
var typosquatVariants = map[string]string{
	"paypa1":    "paypal",
	"paypai":    "paypal",
	"g00gle":    "google",
	"goog1e":    "google",
	"micr0soft": "microsoft",
	"rnicrosoft": "microsoft",
	"arnazon":   "amazon",
	"amaz0n":    "amazon",
	"app1e":     "apple",
	"netf1ix":   "netflix",
	"faceb00k":  "facebook",
	"1inkedin":  "linkedin",
	"we11sfargo": "wellsfargo",
}

// lowReputationTLDs are top-level suffixes disproportionately used in
// phishing campaigns
var lowReputationTLDs = map[string]struct{}{
	"tk": {}, "ml": {}, "ga": {}, "cf": {}, "gq": {},
	"top": {}, "xyz": {}, "click": {}, "link": {}, "work": {},
	"country": {}, "loan": {}, "zip": {}, "rest": {},
}

// analyzeSenderPayload is the tool-specific result shape
type analyzeSenderPayload struct {
	Suspicious   bool                 `json:"suspicious"`
	Address      string               `json:"address"`
	Domain       string               `json:"domain"`
	DisplayName  string               `json:"display_name,omitempty"`
	FreeProvider bool                 `json:"free_provider"`
	Findings     []core.ThreatFinding `json:"findings"`
}

// analyzeSender runs the sender-spoofing heuristics on the From address.
// Each heuristic contributes an independent finding; the tool never fails.
func analyzeSender(email *core.NormalizedEmail) *core.ToolOutcome {
	displayName, address := splitAddress(email.Sender)
	domain := addressDomain(address)

	payload := analyzeSenderPayload{
		Address:     address,
		Domain:      domain,
		DisplayName: displayName,
		Findings:    []core.ThreatFinding{},
	}
	_, payload.FreeProvider = freeMailProviders[domain]

	// (a) display name embeds a different fully-formed address
	if embedded := addressPattern.FindString(displayName); embedded != "" && !strings.EqualFold(embedded, address) {
		payload.Findings = append(payload.Findings, core.ThreatFinding{
			Category:    "spoofed_display_name",
			Severity:    core.SeverityHigh,
			Description: "Display name contains a different email address than the envelope sender",
			Evidence:    fmt.Sprintf("display name %q vs sender %q", displayName, address),
			Source:      sourceLocal,
		})
	}

	// (b) brand name in the display name, free-mail sending domain
	if payload.FreeProvider {
		lowerName := strings.ToLower(displayName)
		for _, brand := range impersonatedBrands {
			if strings.Contains(lowerName, brand) {
				payload.Findings = append(payload.Findings, core.ThreatFinding{
					Category:    "brand_impersonation",
					Severity:    core.SeverityHigh,
					Description: fmt.Sprintf("Display name references %q but the message was sent from a free-mail domain", brand),
					Evidence:    fmt.Sprintf("display name %q, domain %q", displayName, domain),
					Source:      sourceLocal,
				})
				break
			}
		}
	}

	// (c) known typosquat variants
	for variant, brand := range typosquatVariants {
		if strings.Contains(strings.ToLower(domain), variant) {
			payload.Findings = append(payload.Findings, core.ThreatFinding{
				Category:    "typosquatting",
				Severity:    core.SeverityHigh,
				Description: fmt.Sprintf("Sender domain imitates %q", brand),
				Evidence:    fmt.Sprintf("domain %q matches look-alike %q", domain, variant),
				Source:      sourceLocal,
			})
			break
		}
	}

	// (d) low-reputation top-level suffix
	if tld := domainTLD(domain); tld != "" {
		if _, bad := lowReputationTLDs[tld]; bad {
			payload.Findings = append(payload.Findings, core.ThreatFinding{
				Category:    "suspicious_tld",
				Severity:    core.SeverityMedium,
				Description: "Sender domain uses a low-reputation top-level suffix",
				Evidence:    fmt.Sprintf("domain %q, suffix %q", domain, tld),
				Source:      sourceLocal,
			})
		}
	}

	// (e) look-alike digits mixed into a word. Restricted to the digits
	// commonly substituted for letters so ordinary alphanumeric brands
	// do not trip it.
	if label := domainLabel(domain); label != "" && substitutionDigit.MatchString(label) && !hasKnownTyposquat(domain) {
		payload.Findings = append(payload.Findings, core.ThreatFinding{
			Category:    "character_substitution",
			Severity:    core.SeverityMedium,
			Description: "Sender domain mixes look-alike digits into a word",
			Evidence:    fmt.Sprintf("domain label %q", label),
			Source:      sourceLocal,
		})
	}

	payload.Suspicious = len(payload.Findings) > 0
	return successOutcome(sourceLocal, payload)
}

// splitAddress extracts the display name and bare address from a possible
// "Display Name <addr>" wrapper
func splitAddress(from string) (displayName, address string) {
	from = strings.TrimSpace(from)
	open := strings.LastIndexByte(from, '<')
	end := strings.LastIndexByte(from, '>')
	if open >= 0 && end > open {
		displayName = strings.Trim(strings.TrimSpace(from[:open]), `"`)
		address = strings.TrimSpace(from[open+1 : end])
		return displayName, address
	}
	return "", from
}

// addressDomain returns the lowercased domain of an address
func addressDomain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// domainTLD returns the last label of a domain
func domainTLD(domain string) string {
	dot := strings.LastIndexByte(domain, '.')
	if dot < 0 || dot == len(domain)-1 {
		return ""
	}
	return domain[dot+1:]
}

// domainLabel returns the leftmost registrable label of a domain, with
// hyphens split off so "paypa1-security" is inspected as "paypa1"
func domainLabel(domain string) string {
	label := domain
	if dot := strings.IndexByte(label, '.'); dot >= 0 {
		label = label[:dot]
	}
	if dash := strings.IndexByte(label, '-'); dash >= 0 {
		label = label[:dash]
	}
	return label
}

// hasKnownTyposquat reports whether (c) already fired for this domain, so
// (e) does not duplicate the same evidence at a lower severity
func hasKnownTyposquat(domain string) bool {
	lower := strings.ToLower(domain)
	for variant := range typosquatVariants {
		if strings.Contains(lower, variant) {
			return true
		}
	}
	return false
}
