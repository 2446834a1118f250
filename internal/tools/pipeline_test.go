package tools

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// replayModel feeds a fixed sequence of turns to the analyzer
type replayModel struct {
	mu      sync.Mutex
	script  []core.ModelTurn
	pointer int
}

func (m *replayModel) Name() string { return "replay-model" }

func (m *replayModel) Converse(_ context.Context, _ string, _ []core.ToolDefinition, _ []core.Turn) (*core.ModelTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn := m.script[m.pointer]
	m.pointer++
	return &turn, nil
}

// TestAnalyzePhishingEmailEndToEnd runs a typosquatted credential lure
// through the real toolkit under the full orchestration loop: the model
// gathers sender heuristics, authentication and URL reputation, then
// convicts on that evidence.
func TestAnalyzePhishingEmailEndToEnd(t *testing.T) {
	logger := zap.NewNop()

	urlProvider := &fakeURLProvider{
		configured: true,
		verdict: &core.URLVerdict{
			TotalVendors:   20,
			FlaggedCount:   12,
			FlaggedVendors: []string{"VendorA", "VendorB"},
		},
	}
	urlTool := NewURLReputationTool(urlProvider, newMapStore(), time.Hour, logger)
	ipTool := NewIPReputationTool(&fakeIPProvider{configured: true}, newMapStore(), time.Hour, logger)
	toolkit := NewToolkit(urlTool, ipTool, allowlist.NewChecker(nil, logger), logger)

	email := &core.NormalizedEmail{
		Sender:    "PayPal Security <alerts@paypa1-security.com>",
		Recipient: "victim@company.com",
		Subject:   "Your account has been limited",
		Body:      "Restore access at https://paypa1-security.com/login within 24 hours.",
		Headers: map[string]string{
			"authentication-results": "mx.company.com; spf=fail smtp.mailfrom=paypa1-security.com; dkim=none; dmarc=fail",
		},
	}

	model := &replayModel{script: []core.ModelTurn{
		{
			Kind: core.TurnToolCalls,
			ToolRequests: []core.ToolRequest{
				{ID: "c1", Name: ToolAnalyzeSender, Arguments: json.RawMessage(`{}`)},
				{ID: "c2", Name: ToolCheckAuthentication, Arguments: json.RawMessage(`{}`)},
				{ID: "c3", Name: ToolCheckURLReputation, Arguments: json.RawMessage(`{"url": "https://paypa1-security.com/login"}`)},
			},
		},
		{
			Kind: core.TurnFinished,
			Content: `{
  "verdict": "malicious",
  "confidence": 85,
  "threats": [{"category": "typosquatting", "severity": "high", "description": "Sender domain imitates paypal.com", "evidence": "paypa1-security.com"}],
  "authentication": {"spf": "fail", "dkim": "none", "dmarc": "fail"},
  "summary": "Credential phishing from a typosquatted PayPal domain.",
  "reasoning": ["SPF and DMARC fail", "Login URL flagged by 12 of 20 vendors"]
}`,
		},
	}}

	analyzer := core.NewAnalyzer(model, toolkit, logger, core.AnalyzerConfig{
		MaxIterations:     3,
		MaxToolCalls:      8,
		TotalBudget:       5 * time.Second,
		ToolPhaseBudget:   3 * time.Second,
		ModelCallTimeout:  time.Second,
		FallbackTimeout:   time.Second,
		FallbackMinBudget: time.Millisecond,
		ToolTimeout:       time.Second,
	})

	record := analyzer.Analyze(context.Background(), email)

	assert.Equal(t, core.VerdictMalicious, record.Verdict)
	assert.GreaterOrEqual(t, record.Confidence, 70)
	assert.Equal(t, core.AuthFail, record.Authentication.SPF)

	require.Len(t, record.ToolCalls, 3)
	for _, call := range record.ToolCalls {
		require.NotNil(t, call.Outcome, call.Tool)
		assert.True(t, call.Outcome.Success, call.Tool)
	}
	assert.Equal(t, ToolAnalyzeSender, record.ToolCalls[0].Tool)
	assert.Equal(t, ToolCheckAuthentication, record.ToolCalls[1].Tool)
	assert.Equal(t, ToolCheckURLReputation, record.ToolCalls[2].Tool)
	assert.Equal(t, 1, urlProvider.calls)

	var sender analyzeSenderPayload
	require.NoError(t, json.Unmarshal(record.ToolCalls[0].Outcome.Payload, &sender))
	assert.True(t, sender.Suspicious)

	var auth checkAuthenticationPayload
	require.NoError(t, json.Unmarshal(record.ToolCalls[1].Outcome.Payload, &auth))
	assert.Equal(t, core.AuthFail, auth.SPF.Result)
}
