package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const fallbackSystemPrompt = `You are a phishing analysis system. Analyze the email directly; you have no tools.
Respond with only a JSON object:
{"verdict": "benign"|"suspicious"|"malicious", "confidence": 0-100, "threats": [], "authentication": {"spf": "none", "dkim": "none", "dmarc": "none"}, "summary": string, "reasoning": [string]}
Respond with the JSON object and nothing else.`

// degrade is the last line of defense. Depending on the remaining budget
// it either attempts exactly one simplified tool-free model call, or
// synthesizes the conservative placeholder. It always yields a valid
// record and never lets a failure escape the invocation boundary.
func (a *Analyzer) degrade(ctx context.Context, r *run) *AnalysisRecord {
	remaining := a.cfg.TotalBudget - time.Since(r.started)
	if remaining < a.cfg.FallbackMinBudget {
		a.logger.Warn("No budget left for fallback, synthesizing placeholder",
			zap.Duration("remaining", remaining),
			zap.Int("tools_executed", len(r.invocations)))
		return a.placeholder(r)
	}

	timeout := a.cfg.FallbackTimeout
	if remaining < timeout {
		timeout = remaining
	}

	a.logger.Info("Attempting simplified fallback analysis",
		zap.Duration("remaining", remaining),
		zap.Duration("timeout", timeout))

	history := []Turn{{Role: RoleUser, Content: formatEmailPrompt(r.email)}}
	turn, err := a.callModel(ctx, timeout, fallbackSystemPrompt, nil, history)
	if err != nil {
		a.logger.Warn("Fallback model call failed", zap.Error(err))
		return a.placeholder(r)
	}
	r.usage.Add(turn.Usage)
	if turn.Kind != TurnFinished {
		a.logger.Warn("Fallback turn did not finish")
		return a.placeholder(r)
	}

	if _, err := parseAnalysisPayload(turn.Content); err != nil {
		a.logger.Warn("Fallback payload malformed", zap.Error(err))
		return a.placeholder(r)
	}

	r.turn = turn
	record := a.assemble(r)
	record.Reasoning = append(record.Reasoning,
		fmt.Sprintf("Simplified analysis without tool use; %d tool calls completed before degradation", len(r.invocations)))
	return record
}

// placeholder synthesizes the conservative degraded record: suspicious
// rather than benign on uncertainty, because a missed real threat is
// worse than a false alarm.
func (a *Analyzer) placeholder(r *run) *AnalysisRecord {
	record := &AnalysisRecord{
		Verdict:    VerdictSuspicious,
		Confidence: 50,
		Threats:    []ThreatFinding{},
		Authentication: AuthenticationSummary{
			SPF:   AuthNone,
			DKIM:  AuthNone,
			DMARC: AuthNone,
		},
		Summary: "Analysis could not be completed within the time budget. Treat this message with caution and review it manually.",
		Reasoning: []string{
			"The analysis was interrupted before the model reached a verdict.",
			fmt.Sprintf("%d tool calls completed before the analysis was truncated.", len(r.invocations)),
		},
		Metadata: AnalysisMetadata{
			Model:    a.model.Name(),
			Elapsed:  time.Since(r.started),
			Tokens:   r.usage,
			ToolTime: r.toolTime,
		},
	}
	if len(r.invocations) > 0 {
		record.ToolCalls = r.invocations
	}
	return record
}
