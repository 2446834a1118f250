package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AnalyzerConfig holds the budgets and ceilings for one analysis. The
// split between the tool-use phase and the final turn is a tunable with
// no principled derivation, so all of it comes from configuration.
type AnalyzerConfig struct {
	// MaxIterations is the hard ceiling on model turns in the tool loop
	MaxIterations int
	// MaxToolCalls bounds the total invocation log across all turns
	MaxToolCalls int
	// TotalBudget is the caller-visible wall-clock ceiling
	TotalBudget time.Duration
	// ToolPhaseBudget is the slice of TotalBudget reserved for the
	// iterative tool loop; the remainder is kept for a final turn and
	// downstream report generation
	ToolPhaseBudget time.Duration
	// ModelCallTimeout bounds each individual model call
	ModelCallTimeout time.Duration
	// FallbackTimeout bounds the single simplified fallback call
	FallbackTimeout time.Duration
	// FallbackMinBudget is the minimum remaining budget worth spending
	// on a fallback call instead of synthesizing a placeholder
	FallbackMinBudget time.Duration
	// ToolTimeout bounds each individual tool execution
	ToolTimeout time.Duration
}

const agentSystemPrompt = `You are a phishing analysis agent. You are given a forwarded email and a set of tools.
Call tools to gather evidence (URL extraction, authentication headers, sender heuristics, URL and IP reputation) before deciding.
Do not repeat a tool call with the same arguments; results do not change within one analysis.
When you have enough evidence, respond with only a JSON object:
{
  "verdict": "benign" | "suspicious" | "malicious",
  "confidence": 0-100,
  "threats": [{"category": string, "severity": "low"|"medium"|"high"|"critical", "description": string, "evidence": string}],
  "authentication": {"spf": "pass"|"fail"|"neutral"|"softfail"|"none", "dkim": ..., "dmarc": ...},
  "summary": string,
  "reasoning": [string]
}
Use confidence >= 70 only when tool evidence supports the verdict. Respond with the JSON object and nothing else.`

// loopState is the explicit state of the orchestration loop
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateModelRequestedTools
	stateModelFinished
	stateDone
	stateDegraded
)

// Analyzer drives the bounded multi-turn conversation that produces an
// AnalysisRecord. All dependencies are injected; there is no global state.
type Analyzer struct {
	model   ModelClient
	toolkit ToolkitFactory
	logger  *zap.Logger
	cfg     AnalyzerConfig
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(model ModelClient, toolkit ToolkitFactory, logger *zap.Logger, cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{
		model:   model,
		toolkit: toolkit,
		logger:  logger,
		cfg:     cfg,
	}
}

// run carries the mutable state of one invocation
type run struct {
	email       *NormalizedEmail
	dispatcher  ToolDispatcher
	started     time.Time
	iterations  int
	history     []Turn
	invocations []ToolInvocation
	toolTime    time.Duration
	usage       TokenUsage
	turn        *ModelTurn
}

// Analyze performs one full analysis. It always returns a valid record:
// model failures, timeouts and malformed output degrade into a fallback
// call or a conservative placeholder, never an error.
func (a *Analyzer) Analyze(ctx context.Context, email *NormalizedEmail) *AnalysisRecord {
	r := &run{
		email:      email,
		dispatcher: a.toolkit.ForEmail(email),
		started:    time.Now(),
		history: []Turn{{
			Role:    RoleUser,
			Content: formatEmailPrompt(email),
		}},
	}

	state := stateAwaitingModel
	for {
		switch state {
		case stateAwaitingModel:
			state = a.stepModel(ctx, r)
		case stateModelRequestedTools:
			state = a.stepTools(ctx, r)
		case stateModelFinished:
			state = a.stepAssemble(r)
		case stateDone:
			record := a.assemble(r)
			a.logger.Info("Analysis complete",
				zap.String("sender", email.Sender),
				zap.String("verdict", string(record.Verdict)),
				zap.Int("confidence", record.Confidence),
				zap.Int("tool_calls", len(r.invocations)),
				zap.Duration("elapsed", record.Metadata.Elapsed))
			return record
		case stateDegraded:
			return a.degrade(ctx, r)
		}
	}
}

// stepModel implements the AwaitingModel state: budget gates, then one
// model call raced against its own timer.
func (a *Analyzer) stepModel(ctx context.Context, r *run) loopState {
	if r.iterations >= a.cfg.MaxIterations {
		a.logger.Warn("Iteration ceiling reached", zap.Int("iterations", r.iterations))
		return stateDegraded
	}
	if time.Since(r.started) >= a.cfg.ToolPhaseBudget {
		a.logger.Warn("Tool phase budget exhausted",
			zap.Duration("elapsed", time.Since(r.started)),
			zap.Duration("budget", a.cfg.ToolPhaseBudget))
		return stateDegraded
	}

	timeout := a.cfg.ModelCallTimeout
	if remaining := a.cfg.ToolPhaseBudget - time.Since(r.started); remaining < timeout {
		timeout = remaining
	}

	turn, err := a.callModel(ctx, timeout, agentSystemPrompt, r.dispatcher.Definitions(), r.history)
	if err != nil {
		// A hung or failed model call is treated exactly like the
		// no-time-left path, carrying forward completed invocations.
		a.logger.Warn("Model call failed", zap.Error(err), zap.Int("iteration", r.iterations))
		return stateDegraded
	}
	r.usage.Add(turn.Usage)

	switch turn.Kind {
	case TurnToolCalls:
		r.history = append(r.history, Turn{Role: RoleAssistant, Content: turn.Content, ToolRequests: turn.ToolRequests})
		r.turn = turn
		return stateModelRequestedTools
	case TurnFinished:
		r.turn = turn
		return stateModelFinished
	default:
		// Unrecognized termination signal: inconclusive by design.
		a.logger.Warn("Inconclusive model turn", zap.Int("iteration", r.iterations))
		return stateDegraded
	}
}

// stepTools executes every tool call requested by the current turn.
// Calls within a turn run concurrently against each other, but the loop
// waits for all of them before resuming the conversation.
func (a *Analyzer) stepTools(ctx context.Context, r *run) loopState {
	requests := r.turn.ToolRequests
	results := a.executeTools(ctx, r, requests)

	r.history = append(r.history, Turn{Role: RoleTool, ToolResults: results})
	r.iterations++
	return stateAwaitingModel
}

// stepAssemble validates the finished turn's payload; a parse failure is
// escalated exactly like a model-call failure.
func (a *Analyzer) stepAssemble(r *run) loopState {
	if _, err := parseAnalysisPayload(r.turn.Content); err != nil {
		a.logger.Warn("Malformed final model turn", zap.Error(err))
		r.turn = nil
		return stateDegraded
	}
	return stateDone
}

// executeTools dispatches requests concurrently and appends invocations
// to the log in request order. Requests beyond the remaining tool-call
// allowance are refused: the model sees a failed result for them, but
// nothing is dispatched or logged, so the invocation log never exceeds
// the configured maximum.
func (a *Analyzer) executeTools(ctx context.Context, r *run, requests []ToolRequest) []ToolResult {
	allowance := a.cfg.MaxToolCalls - len(r.invocations)
	if allowance < 0 {
		allowance = 0
	}

	invocations := make([]ToolInvocation, len(requests))
	outcomes := make([]*ToolOutcome, len(requests))

	type indexed struct {
		idx     int
		outcome *ToolOutcome
		took    time.Duration
	}
	resCh := make(chan indexed, len(requests))
	inflight := 0

	for i, req := range requests {
		invocations[i] = ToolInvocation{
			ID:        req.ID,
			Tool:      req.Name,
			Arguments: req.Arguments,
			StartedAt: time.Now(),
		}

		if i >= allowance {
			outcomes[i] = &ToolOutcome{
				Success: false,
				Error:   "tool call budget exhausted",
				Source:  "local",
			}
			continue
		}

		inflight++
		go func(idx int, req ToolRequest) {
			started := time.Now()
			outcome := a.dispatchOne(ctx, r.dispatcher, req)
			resCh <- indexed{idx: idx, outcome: outcome, took: time.Since(started)}
		}(i, req)
	}

	for ; inflight > 0; inflight-- {
		res := <-resCh
		outcomes[res.idx] = res.outcome
		invocations[res.idx].Duration = res.took
		r.toolTime += res.took
	}

	results := make([]ToolResult, len(requests))
	for i := range requests {
		invocations[i].Outcome = outcomes[i]
		if i < allowance {
			r.invocations = append(r.invocations, invocations[i])
		}

		content, err := json.Marshal(outcomes[i])
		if err != nil {
			content = []byte(`{"success":false,"error":"failed to serialize tool outcome"}`)
		}
		results[i] = ToolResult{
			ID:      requests[i].ID,
			Name:    requests[i].Name,
			Content: string(content),
		}

		a.logger.Debug("Tool call executed",
			zap.String("tool", requests[i].Name),
			zap.Bool("success", outcomes[i].Success),
			zap.Duration("duration", invocations[i].Duration))
	}
	return results
}

// dispatchOne runs a single tool call under its own timeout, converting
// every failure class into a ToolOutcome so the model can reason around
// it instead of aborting the analysis.
func (a *Analyzer) dispatchOne(ctx context.Context, dispatcher ToolDispatcher, req ToolRequest) (outcome *ToolOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("Tool panicked",
				zap.String("tool", req.Name),
				zap.Any("panic", rec))
			outcome = &ToolOutcome{
				Success: false,
				Error:   fmt.Sprintf("tool %s failed: %v", req.Name, rec),
				Source:  "local",
			}
		}
	}()

	tctx := ctx
	if a.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, a.cfg.ToolTimeout)
		defer cancel()
	}

	out, err := dispatcher.Dispatch(tctx, req.Name, req.Arguments)
	if err != nil {
		return &ToolOutcome{
			Success: false,
			Error:   err.Error(),
			Source:  "local",
		}
	}
	return out
}

// callModel races one model call against a timer. If the timer fires
// first the call is abandoned and its eventual result discarded.
func (a *Analyzer) callModel(ctx context.Context, timeout time.Duration, system string, tools []ToolDefinition, history []Turn) (*ModelTurn, error) {
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		turn *ModelTurn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		turn, err := a.model.Converse(cctx, system, tools, history)
		ch <- result{turn: turn, err: err}
	}()

	select {
	case res := <-ch:
		return res.turn, res.err
	case <-cctx.Done():
		return nil, cctx.Err()
	}
}

// formatEmailPrompt renders the email for the model's user turn
func formatEmailPrompt(email *NormalizedEmail) string {
	headers := ""
	for _, name := range []string{"received-spf", "authentication-results", "dkim-signature", "reply-to", "return-path"} {
		if v := email.Header(name); v != "" {
			headers += fmt.Sprintf("%s: %s\n", name, v)
		}
	}
	return fmt.Sprintf("Analyze this forwarded email for phishing intent.\n\nFrom: %s\nTo: %s\nSubject: %s\nSelected headers:\n%s\nBody:\n%s",
		email.Sender, email.Recipient, email.Subject, headers, email.Body)
}
