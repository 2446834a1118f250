package core

import (
	"encoding/json"
	"time"
)

// Verdict is the three-valued outcome of a phishing analysis
type Verdict string

const (
	VerdictBenign     Verdict = "benign"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// IsValid reports whether the verdict is one of the known values
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictBenign, VerdictSuspicious, VerdictMalicious:
		return true
	}
	return false
}

// Severity classifies how serious a threat finding is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether the severity is one of the known values
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AuthResult classifies an email authentication signal
type AuthResult string

const (
	AuthPass     AuthResult = "pass"
	AuthFail     AuthResult = "fail"
	AuthNeutral  AuthResult = "neutral"
	AuthSoftfail AuthResult = "softfail"
	AuthNone     AuthResult = "none"
)

// NormalizedEmail is a parsed email handed to one analysis invocation.
// It is never mutated after construction; tools only read it.
type NormalizedEmail struct {
	Sender     string
	Recipient  string
	Subject    string
	Body       string
	HTMLBody   string
	Headers    map[string]string
	ReceivedAt time.Time
}

// Header returns the raw value of a header by its lowercased name
func (e *NormalizedEmail) Header(name string) string {
	return e.Headers[name]
}

// ToolParameter describes one named input of a tool
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolDefinition describes a capability the model may invoke.
// The description is consumed by the model, not by code.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolRequest is one tool call requested by a model turn
type ToolRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolOutcome is the result of executing one tool call. Exactly one of
// Payload and Error is meaningful, selected by Success.
type ToolOutcome struct {
	Success  bool            `json:"success"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
	Source   string          `json:"source"`
	CacheHit bool            `json:"cache_hit,omitempty"`
}

// ToolInvocation is one executed (or attempted) tool call. It is created
// when the model requests the call and mutated once when the outcome is
// attached, then appended to the invocation log in request order.
type ToolInvocation struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Outcome   *ToolOutcome    `json:"outcome,omitempty"`
}

// ThreatFinding is one piece of evidence contributing to the verdict
type ThreatFinding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Evidence    string   `json:"evidence,omitempty"`
	Confidence  int      `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// AuthenticationSummary carries the three independent authentication signals
type AuthenticationSummary struct {
	SPF   AuthResult `json:"spf"`
	DKIM  AuthResult `json:"dkim"`
	DMARC AuthResult `json:"dmarc"`
}

// TokenUsage carries token counters reported by a model call, when available
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates usage from another model call
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// AnalysisMetadata carries timing and accounting for one analysis
type AnalysisMetadata struct {
	Model    string        `json:"model"`
	Elapsed  time.Duration `json:"elapsed"`
	Tokens   TokenUsage    `json:"tokens"`
	ToolTime time.Duration `json:"tool_time"`
}

// AnalysisRecord is the final output of one analysis invocation. It is
// constructed exactly once, either from a finished model turn or as a
// conservative placeholder, and never mutated afterwards.
type AnalysisRecord struct {
	Verdict        Verdict               `json:"verdict"`
	Confidence     int                   `json:"confidence"`
	Threats        []ThreatFinding       `json:"threats"`
	Authentication AuthenticationSummary `json:"authentication"`
	Summary        string                `json:"summary"`
	Reasoning      []string              `json:"reasoning,omitempty"`
	ToolCalls      []ToolInvocation      `json:"tool_calls,omitempty"`
	Metadata       AnalysisMetadata      `json:"metadata"`
}

// TurnKind is the closed set of shapes a model turn can take
type TurnKind int

const (
	// TurnFinished means the model produced a final textual answer
	TurnFinished TurnKind = iota
	// TurnToolCalls means the model requested one or more tool calls
	TurnToolCalls
	// TurnInconclusive covers every other termination signal; the loop
	// treats it as a designed fallthrough into degradation
	TurnInconclusive
)

// ModelTurn is one normalized response from the model service
type ModelTurn struct {
	Kind         TurnKind
	Content      string
	ToolRequests []ToolRequest
	Usage        TokenUsage
}

// TurnRole identifies who produced a conversation turn
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleTool      TurnRole = "tool"
)

// ToolResult is one serialized tool outcome fed back to the model
type ToolResult struct {
	ID      string
	Name    string
	Content string
}

// Turn is one entry in the running conversation history
type Turn struct {
	Role         TurnRole
	Content      string
	ToolRequests []ToolRequest
	ToolResults  []ToolResult
}
