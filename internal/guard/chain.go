// Package guard screens inbound messages before they reach the
// analysis pipeline: loop prevention, per-sender rate limiting and
// duplicate suppression.
package guard

import (
	"context"

	"github.com/mikey/phish-triage/internal/core"
)

// Chain runs a sequence of gatekeepers and rejects on the first refusal
type Chain struct {
	guards []core.Gatekeeper
}

// NewChain creates a new gatekeeper chain
func NewChain(guards ...core.Gatekeeper) *Chain {
	return &Chain{guards: guards}
}

// Admit asks each guard in order; the first refusal wins
func (c *Chain) Admit(ctx context.Context, email *core.NormalizedEmail) (bool, string) {
	for _, guard := range c.guards {
		if ok, reason := guard.Admit(ctx, email); !ok {
			return false, reason
		}
	}
	return true, ""
}
