package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// loopHeaders are markers set by automated mailers and by our own
// outbound reports
var loopHeaders = []string{
	"x-phish-triage",
	"x-auto-response-suppress",
	"auto-submitted",
}

// LoopGuard rejects messages that would make the service analyze its own
// output or get stuck answering an autoresponder
type LoopGuard struct {
	ownDomain      string
	serviceAddress string
	maxReplyDepth  int
	logger         *zap.Logger
}

// NewLoopGuard creates a new loop guard
func NewLoopGuard(ownDomain, serviceAddress string, maxReplyDepth int, logger *zap.Logger) *LoopGuard {
	return &LoopGuard{
		ownDomain:      strings.ToLower(ownDomain),
		serviceAddress: strings.ToLower(serviceAddress),
		maxReplyDepth:  maxReplyDepth,
		logger:         logger,
	}
}

// Admit decides whether the email may enter the analysis pipeline
func (g *LoopGuard) Admit(_ context.Context, email *core.NormalizedEmail) (bool, string) {
	sender := strings.ToLower(email.Sender)

	if g.serviceAddress != "" && strings.Contains(sender, g.serviceAddress) {
		return false, "sender is the service itself"
	}
	if g.ownDomain != "" && senderDomain(sender) == g.ownDomain {
		return false, "sender is in the service's own domain"
	}

	for _, name := range loopHeaders {
		if value := email.Header(name); value != "" && !strings.EqualFold(value, "no") {
			return false, fmt.Sprintf("loop marker header %s present", name)
		}
	}

	if depth := replyDepth(email.Subject); g.maxReplyDepth > 0 && depth > g.maxReplyDepth {
		return false, fmt.Sprintf("reply depth %d exceeds limit", depth)
	}

	return true, ""
}

// senderDomain extracts the registrar domain portion of an address,
// tolerating display names
func senderDomain(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return ""
	}
	domain := sender[at+1:]
	domain = strings.TrimRight(domain, "> \t")
	return domain
}

// replyDepth counts leading Re:/Fwd: markers on a subject line
func replyDepth(subject string) int {
	depth := 0
	rest := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(rest)
		switch {
		case strings.HasPrefix(lower, "re:"):
			rest = strings.TrimSpace(rest[3:])
		case strings.HasPrefix(lower, "fwd:"):
			rest = strings.TrimSpace(rest[4:])
		case strings.HasPrefix(lower, "fw:"):
			rest = strings.TrimSpace(rest[3:])
		default:
			return depth
		}
		depth++
	}
}
