package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// RateGuard limits how many analyses one sender can trigger inside a
// sliding window. Counters live in the shared key-value store so the
// limit holds across restarts. Store failures fail open: loss of the
// counter must never block triage.
type RateGuard struct {
	store  core.KeyValueStore
	max    int
	window time.Duration
	logger *zap.Logger
}

// NewRateGuard creates a new rate guard
func NewRateGuard(store core.KeyValueStore, max int, window time.Duration, logger *zap.Logger) *RateGuard {
	return &RateGuard{
		store:  store,
		max:    max,
		window: window,
		logger: logger,
	}
}

// Admit decides whether the sender is within their rate allowance
func (g *RateGuard) Admit(ctx context.Context, email *core.NormalizedEmail) (bool, string) {
	key := "rate:" + strings.ToLower(email.Sender)

	count := 0
	value, err := g.store.Get(ctx, key)
	if err == nil {
		count, _ = strconv.Atoi(string(value))
	} else if err != core.ErrCacheMiss {
		g.logger.Warn("Rate limit store read failed, admitting",
			zap.String("sender", email.Sender),
			zap.Error(err))
		return true, ""
	}

	if count >= g.max {
		return false, fmt.Sprintf("sender exceeded %d analyses per %s", g.max, g.window)
	}

	if err := g.store.Set(ctx, key, []byte(strconv.Itoa(count+1)), g.window); err != nil {
		g.logger.Warn("Rate limit store write failed",
			zap.String("sender", email.Sender),
			zap.Error(err))
	}
	return true, ""
}

// DedupGuard drops repeated submissions of the same message inside a
// retention window. Identity is the sender, subject and body digest, so
// a resend with an altered payload is still analyzed.
type DedupGuard struct {
	store  core.KeyValueStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewDedupGuard creates a new dedup guard
func NewDedupGuard(store core.KeyValueStore, ttl time.Duration, logger *zap.Logger) *DedupGuard {
	return &DedupGuard{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Admit decides whether this exact message was already analyzed recently
func (g *DedupGuard) Admit(ctx context.Context, email *core.NormalizedEmail) (bool, string) {
	key := "dedup:" + fingerprint(email)

	_, err := g.store.Get(ctx, key)
	switch {
	case err == nil:
		return false, "duplicate of a recently analyzed message"
	case err != core.ErrCacheMiss:
		g.logger.Warn("Dedup store read failed, admitting", zap.Error(err))
		return true, ""
	}

	if err := g.store.Set(ctx, key, []byte("1"), g.ttl); err != nil {
		g.logger.Warn("Dedup store write failed", zap.Error(err))
	}
	return true, ""
}

// fingerprint derives a stable identity for a message
func fingerprint(email *core.NormalizedEmail) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(email.Sender)))
	h.Write([]byte{0})
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(email.Body))
	return hex.EncodeToString(h.Sum(nil))
}
