package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// analysisPayload is the structured shape the model is asked to emit
type analysisPayload struct {
	Verdict        Verdict                `json:"verdict"`
	Confidence     *int                   `json:"confidence"`
	Threats        []ThreatFinding        `json:"threats"`
	Authentication *AuthenticationSummary `json:"authentication"`
	Summary        string                 `json:"summary"`
	Reasoning      []string               `json:"reasoning"`
}

// stripDecorations removes the thin wrapping a model may add around the
// structured payload: leading/trailing code fencing and any prose outside
// the outermost JSON object. This is the single deliberate point of
// fragility in output handling.
func stripDecorations(content string) string {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// parseAnalysisPayload parses a finished model turn into the structured
// payload, rejecting partially-shaped objects. The model's self-reported
// confidence is trusted within bounds; verdict/confidence band consistency
// is deliberately not re-derived here.
func parseAnalysisPayload(content string) (*analysisPayload, error) {
	stripped := stripDecorations(content)
	if stripped == "" {
		return nil, fmt.Errorf("no analysis payload in model output")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripped), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analysis payload: %w", err)
	}

	if !payload.Verdict.IsValid() {
		return nil, fmt.Errorf("invalid verdict %q", payload.Verdict)
	}
	if payload.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	if *payload.Confidence < 0 || *payload.Confidence > 100 {
		return nil, fmt.Errorf("confidence %d out of range", *payload.Confidence)
	}
	for i := range payload.Threats {
		if !payload.Threats[i].Severity.IsValid() {
			return nil, fmt.Errorf("invalid severity %q in threat %d", payload.Threats[i].Severity, i)
		}
	}
	return &payload, nil
}

// assemble builds the final record from the validated finished turn,
// attaching the invocation log (omitted entirely when empty) and metadata.
func (a *Analyzer) assemble(r *run) *AnalysisRecord {
	// The payload already validated in stepAssemble; a second parse here
	// keeps assemble total without carrying parse state across states.
	payload, err := parseAnalysisPayload(r.turn.Content)
	if err != nil {
		// Unreachable from the state machine, but degrade rather than
		// return a corrupt record if a caller misuses assemble.
		return a.placeholder(r)
	}

	record := &AnalysisRecord{
		Verdict:    payload.Verdict,
		Confidence: *payload.Confidence,
		Threats:    payload.Threats,
		Summary:    payload.Summary,
		Reasoning:  payload.Reasoning,
		Metadata: AnalysisMetadata{
			Model:    a.model.Name(),
			Elapsed:  time.Since(r.started),
			Tokens:   r.usage,
			ToolTime: r.toolTime,
		},
	}
	if payload.Authentication != nil {
		record.Authentication = normalizeAuth(*payload.Authentication)
	} else {
		record.Authentication = AuthenticationSummary{SPF: AuthNone, DKIM: AuthNone, DMARC: AuthNone}
	}
	if payload.Threats == nil {
		record.Threats = []ThreatFinding{}
	}
	if len(r.invocations) > 0 {
		record.ToolCalls = r.invocations
	}
	return record
}

// normalizeAuth maps unknown authentication tokens to none so the record
// always carries the closed enum
func normalizeAuth(auth AuthenticationSummary) AuthenticationSummary {
	norm := func(v AuthResult) AuthResult {
		switch v {
		case AuthPass, AuthFail, AuthNeutral, AuthSoftfail, AuthNone:
			return v
		}
		return AuthNone
	}
	return AuthenticationSummary{
		SPF:   norm(auth.SPF),
		DKIM:  norm(auth.DKIM),
		DMARC: norm(auth.DMARC),
	}
}
