package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripDecorations(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Here is my analysis: {"a":1} Hope that helps!`, `{"a":1}`},
		{"whitespace", "  \n {\"a\":1} \n ", `{"a":1}`},
		{"no object at all", "no json here", "no json here"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, stripDecorations(tc.in), tc.name)
	}
}

func TestParseAnalysisPayloadValid(t *testing.T) {
	payload, err := parseAnalysisPayload(validFinalPayload)

	require.NoError(t, err)
	assert.Equal(t, VerdictMalicious, payload.Verdict)
	assert.Equal(t, 85, *payload.Confidence)
	require.NotNil(t, payload.Authentication)
	assert.Equal(t, AuthFail, payload.Authentication.SPF)
}

func TestParseAnalysisPayloadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not json", "the email is definitely phishing"},
		{"unknown verdict", `{"verdict": "scammy", "confidence": 50}`},
		{"missing confidence", `{"verdict": "benign"}`},
		{"confidence above range", `{"verdict": "benign", "confidence": 101}`},
		{"confidence below range", `{"verdict": "benign", "confidence": -1}`},
		{"bad severity", `{"verdict": "malicious", "confidence": 90, "threats": [{"category": "x", "severity": "catastrophic", "description": "d"}]}`},
	}

	for _, tc := range cases {
		_, err := parseAnalysisPayload(tc.in)
		assert.Error(t, err, tc.name)
	}
}

func TestParseAnalysisPayloadZeroConfidenceIsValid(t *testing.T) {
	payload, err := parseAnalysisPayload(`{"verdict": "benign", "confidence": 0}`)

	require.NoError(t, err)
	assert.Equal(t, 0, *payload.Confidence)
}

func TestNormalizeAuthMapsUnknownToNone(t *testing.T) {
	norm := normalizeAuth(AuthenticationSummary{
		SPF:   "temperror",
		DKIM:  AuthPass,
		DMARC: "",
	})

	assert.Equal(t, AuthNone, norm.SPF)
	assert.Equal(t, AuthPass, norm.DKIM)
	assert.Equal(t, AuthNone, norm.DMARC)
}
