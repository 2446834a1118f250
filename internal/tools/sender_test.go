package tools

import (
	"encoding/json"
	"testing"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSenderPayload(t *testing.T, outcome *core.ToolOutcome) analyzeSenderPayload {
	t.Helper()
	require.True(t, outcome.Success)
	var payload analyzeSenderPayload
	require.NoError(t, json.Unmarshal(outcome.Payload, &payload))
	return payload
}

func findingCategories(payload analyzeSenderPayload) []string {
	categories := make([]string, 0, len(payload.Findings))
	for _, f := range payload.Findings {
		categories = append(categories, f.Category)
	}
	return categories
}

func TestAnalyzeSenderCleanAddress(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "Alice Smith <alice@company.com>",
	}))

	assert.False(t, payload.Suspicious)
	assert.Empty(t, payload.Findings)
	assert.Equal(t, "alice@company.com", payload.Address)
	assert.Equal(t, "company.com", payload.Domain)
	assert.Equal(t, "Alice Smith", payload.DisplayName)
}

func TestAnalyzeSenderSpoofedDisplayName(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "security@paypal.com <attacker@evil.net>",
	}))

	assert.True(t, payload.Suspicious)
	assert.Contains(t, findingCategories(payload), "spoofed_display_name")
}

func TestAnalyzeSenderBrandFromFreeMail(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "PayPal Support <random8271@gmail.com>",
	}))

	assert.True(t, payload.FreeProvider)
	assert.Contains(t, findingCategories(payload), "brand_impersonation")
}

func TestAnalyzeSenderBrandFromOwnDomainIsClean(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "PayPal Support <support@paypal.com>",
	}))

	assert.NotContains(t, findingCategories(payload), "brand_impersonation")
}

func TestAnalyzeSenderTyposquatSuppressesSubstitution(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "billing@paypa1.com",
	}))

	categories := findingCategories(payload)
	assert.Contains(t, categories, "typosquatting")
	assert.NotContains(t, categories, "character_substitution")
}

func TestAnalyzeSenderCharacterSubstitution(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "alerts@secur1ty-team.com",
	}))

	assert.Contains(t, findingCategories(payload), "character_substitution")
}

func TestAnalyzeSenderPlainAlphanumericNotFlagged(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "offers@car24.com",
	}))

	assert.NotContains(t, findingCategories(payload), "character_substitution")
}

func TestAnalyzeSenderLowReputationTLD(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "winner@prizes.tk",
	}))

	categories := findingCategories(payload)
	assert.Contains(t, categories, "suspicious_tld")

	for _, f := range payload.Findings {
		if f.Category == "suspicious_tld" {
			assert.Equal(t, core.SeverityMedium, f.Severity)
		}
	}
}

func TestAnalyzeSenderBareAddress(t *testing.T) {
	payload := decodeSenderPayload(t, analyzeSender(&core.NormalizedEmail{
		Sender: "bob@company.org",
	}))

	assert.Equal(t, "bob@company.org", payload.Address)
	assert.Empty(t, payload.DisplayName)
	assert.False(t, payload.Suspicious)
}
