package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrUnknownTool is returned by a dispatcher for a tool name outside
	// the fixed set
	ErrUnknownTool = errors.New("unknown tool")
	// ErrCacheMiss is returned by a KeyValueStore when a key is absent
	// or expired
	ErrCacheMiss = errors.New("cache entry not found")
)

// ModelClient drives one conversation turn with an LLM service. It returns
// either a finished textual turn or a set of requested tool calls, plus
// any usage counters the provider exposes. Implementations must honor
// context cancellation so the caller can race the call against a timer.
type ModelClient interface {
	// Name identifies the underlying model for record metadata
	Name() string

	// Converse sends the system instruction, tool definitions and running
	// history and returns the model's next turn. A nil tools slice asks
	// for a plain completion with no tool use.
	Converse(ctx context.Context, system string, tools []ToolDefinition, history []Turn) (*ModelTurn, error)
}

// ToolDispatcher maps a tool name and raw arguments to an implementation
// and executes it. Unknown names fail with ErrUnknownTool. The dispatcher
// performs no timing; that is the loop's responsibility.
type ToolDispatcher interface {
	Definitions() []ToolDefinition
	Dispatch(ctx context.Context, name string, args json.RawMessage) (*ToolOutcome, error)
}

// ToolkitFactory builds a dispatcher bound to one email, so local tools
// operate on the message in hand
type ToolkitFactory interface {
	ForEmail(email *NormalizedEmail) ToolDispatcher
}

// KeyValueStore is a get/set-with-expiry byte store shared across
// invocations. It is a cost optimization, not a consistency mechanism;
// duplicate writes under a race are acceptable.
type KeyValueStore interface {
	// Get returns the value for key, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// URLVerdict is a normalized URL reputation response
type URLVerdict struct {
	TotalVendors   int
	FlaggedCount   int
	FlaggedVendors []string
}

// IPVerdict is a normalized IP reputation response
type IPVerdict struct {
	AbuseScore   int
	TotalReports int
	CountryCode  string
	ISP          string
	Domain       string
}

// URLReputationProvider is a thin adapter to an external URL reputation
// service
type URLReputationProvider interface {
	Name() string
	// Configured reports whether the provider credential is set, and if
	// not, names the missing configuration key
	Configured() (bool, string)
	Lookup(ctx context.Context, rawURL string) (*URLVerdict, error)
}

// IPReputationProvider is a thin adapter to an external IP reputation
// service
type IPReputationProvider interface {
	Name() string
	Configured() (bool, string)
	Lookup(ctx context.Context, ip string) (*IPVerdict, error)
}

// Gatekeeper decides whether an inbound email should be analyzed at all.
// A refused email is dropped with the returned reason.
type Gatekeeper interface {
	Admit(ctx context.Context, email *NormalizedEmail) (bool, string)
}

// ReportSink renders and delivers one finished AnalysisRecord
type ReportSink interface {
	Deliver(ctx context.Context, email *NormalizedEmail, record *AnalysisRecord) error
}

// IngestServer is a long-running inbound listener (webhook or SMTP)
type IngestServer interface {
	Start() error
	Stop() error
}
