package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// The fixed set of tool names exposed to the model
const (
	ToolExtractURLs         = "extract_urls"
	ToolCheckAuthentication = "check_authentication"
	ToolAnalyzeSender       = "analyze_sender"
	ToolCheckURLReputation  = "check_url_reputation"
	ToolCheckIPReputation   = "check_ip_reputation"
)

// sourceLocal tags outcomes produced without external lookups
const sourceLocal = "local"

// definitions is the static, process-wide tool definition set
var definitions = []core.ToolDefinition{
	{
		Name:        ToolExtractURLs,
		Description: "Extract all URLs from the email body and HTML, with surrounding context, registrable domains, and counts of total and non-allow-listed URLs.",
		Parameters:  []core.ToolParameter{},
	},
	{
		Name:        ToolCheckAuthentication,
		Description: "Classify the email's SPF, DKIM and DMARC authentication signals from its headers. Returns raw header snippets alongside each classification.",
		Parameters:  []core.ToolParameter{},
	},
	{
		Name:        ToolAnalyzeSender,
		Description: "Run sender-spoofing heuristics on the From address: display-name mismatch, brand impersonation from a free-mail domain, typosquatting, low-reputation TLD, character substitution.",
		Parameters:  []core.ToolParameter{},
	},
	{
		Name:        ToolCheckURLReputation,
		Description: "Look up an absolute URL against an external reputation provider. Returns a maliciousness ratio and the flagging vendors.",
		Parameters: []core.ToolParameter{
			{Name: "url", Type: "string", Description: "The absolute URL to check", Required: true},
		},
	},
	{
		Name:        ToolCheckIPReputation,
		Description: "Look up an IPv4 address against an external abuse database. Returns an abuse score and a four-level risk tier.",
		Parameters: []core.ToolParameter{
			{Name: "ip", Type: "string", Description: "The dotted-quad IPv4 address to check", Required: true},
		},
	},
}

// Toolkit holds the shared, invocation-independent tool state: the
// reputation tools (provider, cache, credential gate) and the allow-list.
// It implements core.ToolkitFactory.
type Toolkit struct {
	urlTool   *URLReputationTool
	ipTool    *IPReputationTool
	allowlist *allowlist.Checker
	logger    *zap.Logger
}

// NewToolkit creates a new toolkit
func NewToolkit(urlTool *URLReputationTool, ipTool *IPReputationTool, allow *allowlist.Checker, logger *zap.Logger) *Toolkit {
	return &Toolkit{
		urlTool:   urlTool,
		ipTool:    ipTool,
		allowlist: allow,
		logger:    logger,
	}
}

// ForEmail returns a dispatcher bound to one email, so the local tools
// operate on the message in hand
func (t *Toolkit) ForEmail(email *core.NormalizedEmail) core.ToolDispatcher {
	return &Registry{
		email:   email,
		toolkit: t,
	}
}

// Registry dispatches tool calls for a single analysis invocation. It
// holds no mutable state and performs no timing.
type Registry struct {
	email   *core.NormalizedEmail
	toolkit *Toolkit
}

// Definitions returns the static tool definition set
func (r *Registry) Definitions() []core.ToolDefinition {
	return definitions
}

// Dispatch executes the named tool against the bound email. An unknown
// name is a hard error; every recognized tool converts its own failures
// into a structured outcome instead.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (*core.ToolOutcome, error) {
	switch name {
	case ToolExtractURLs:
		return extractURLs(r.email, r.toolkit.allowlist), nil
	case ToolCheckAuthentication:
		return checkAuthentication(r.email), nil
	case ToolAnalyzeSender:
		return analyzeSender(r.email), nil
	case ToolCheckURLReputation:
		var params struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return failedOutcome(r.toolkit.urlTool.provider.Name(), fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return r.toolkit.urlTool.Check(ctx, params.URL), nil
	case ToolCheckIPReputation:
		var params struct {
			IP string `json:"ip"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return failedOutcome(r.toolkit.ipTool.provider.Name(), fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return r.toolkit.ipTool.Check(ctx, params.IP), nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}
}

// successOutcome wraps a tool-specific payload into a successful outcome
func successOutcome(source string, payload interface{}) *core.ToolOutcome {
	raw, err := json.Marshal(payload)
	if err != nil {
		return failedOutcome(source, fmt.Sprintf("failed to encode tool payload: %v", err))
	}
	return &core.ToolOutcome{
		Success: true,
		Payload: raw,
		Source:  source,
	}
}

// failedOutcome builds a structured failure
func failedOutcome(source string, msg string) *core.ToolOutcome {
	return &core.ToolOutcome{
		Success: false,
		Error:   msg,
		Source:  source,
	}
}
