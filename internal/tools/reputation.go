package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// maxFlaggedVendors bounds the vendor list carried in a URL outcome
const maxFlaggedVendors = 5

// Risk tiers derived from the provider's abuse-confidence score
const (
	riskCritical = "critical"
	riskHigh     = "high"
	riskMedium   = "medium"
	riskLow      = "low"
)

// urlReputationPayload is the tool-specific result shape for URL lookups
type urlReputationPayload struct {
	URL            string   `json:"url"`
	Malicious      bool     `json:"malicious"`
	Ratio          float64  `json:"ratio"`
	FlaggedCount   int      `json:"flagged_count"`
	TotalVendors   int      `json:"total_vendors"`
	FlaggedVendors []string `json:"flagged_vendors,omitempty"`
}

// ipReputationPayload is the tool-specific result shape for IP lookups
type ipReputationPayload struct {
	IP           string `json:"ip"`
	Malicious    bool   `json:"malicious"`
	AbuseScore   int    `json:"abuse_score"`
	RiskTier     string `json:"risk_tier"`
	TotalReports int    `json:"total_reports"`
	CountryCode  string `json:"country_code,omitempty"`
	ISP          string `json:"isp,omitempty"`
}

// URLReputationTool wraps a URL reputation provider with input
// validation, a credential gate, and a shared cache
type URLReputationTool struct {
	provider core.URLReputationProvider
	store    core.KeyValueStore
	ttl      time.Duration
	logger   *zap.Logger
}

// NewURLReputationTool creates a new URL reputation tool
func NewURLReputationTool(provider core.URLReputationProvider, store core.KeyValueStore, ttl time.Duration, logger *zap.Logger) *URLReputationTool {
	return &URLReputationTool{
		provider: provider,
		store:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

// Check looks up one URL. Every failure class (malformed input, missing
// credential, provider error, timeout) becomes a structured outcome.
func (t *URLReputationTool) Check(ctx context.Context, rawURL string) *core.ToolOutcome {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("not a well-formed absolute URL: %q", rawURL))
	}

	if ok, key := t.provider.Configured(); !ok {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("url reputation unavailable: %s is not configured", key))
	}

	cacheKey := "urlrep:" + rawURL
	if cached := readCached[urlReputationPayload](ctx, t.store, cacheKey); cached != nil {
		t.logger.Debug("URL reputation cache hit", zap.String("url", rawURL))
		outcome := successOutcome(t.provider.Name(), cached)
		outcome.CacheHit = true
		return outcome
	}

	verdict, err := t.provider.Lookup(ctx, rawURL)
	if err != nil {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("url reputation lookup failed: %v", err))
	}

	payload := urlReputationPayload{
		URL:            rawURL,
		FlaggedCount:   verdict.FlaggedCount,
		TotalVendors:   verdict.TotalVendors,
		FlaggedVendors: verdict.FlaggedVendors,
	}
	if verdict.TotalVendors > 0 {
		payload.Ratio = float64(verdict.FlaggedCount) / float64(verdict.TotalVendors)
	}
	payload.Malicious = payload.Ratio > 0
	if len(payload.FlaggedVendors) > maxFlaggedVendors {
		payload.FlaggedVendors = payload.FlaggedVendors[:maxFlaggedVendors]
	}

	writeCached(ctx, t.store, cacheKey, payload, t.ttl, t.logger)
	return successOutcome(t.provider.Name(), payload)
}

// IPReputationTool wraps an IP reputation provider with strict input
// validation, a credential gate, and a shared cache
type IPReputationTool struct {
	provider core.IPReputationProvider
	store    core.KeyValueStore
	ttl      time.Duration
	logger   *zap.Logger
}

// NewIPReputationTool creates a new IP reputation tool
func NewIPReputationTool(provider core.IPReputationProvider, store core.KeyValueStore, ttl time.Duration, logger *zap.Logger) *IPReputationTool {
	return &IPReputationTool{
		provider: provider,
		store:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

// Check looks up one IPv4 address with the same graceful-failure contract
// as URL lookups
func (t *IPReputationTool) Check(ctx context.Context, ip string) *core.ToolOutcome {
	if !validDottedQuad(ip) {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("not a valid IPv4 address: %q", ip))
	}

	if ok, key := t.provider.Configured(); !ok {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("ip reputation unavailable: %s is not configured", key))
	}

	cacheKey := "iprep:" + ip
	if cached := readCached[ipReputationPayload](ctx, t.store, cacheKey); cached != nil {
		t.logger.Debug("IP reputation cache hit", zap.String("ip", ip))
		outcome := successOutcome(t.provider.Name(), cached)
		outcome.CacheHit = true
		return outcome
	}

	verdict, err := t.provider.Lookup(ctx, ip)
	if err != nil {
		return failedOutcome(t.provider.Name(), fmt.Sprintf("ip reputation lookup failed: %v", err))
	}

	payload := ipReputationPayload{
		IP:           ip,
		AbuseScore:   verdict.AbuseScore,
		RiskTier:     riskTier(verdict.AbuseScore),
		Malicious:    verdict.AbuseScore >= 50,
		TotalReports: verdict.TotalReports,
		CountryCode:  verdict.CountryCode,
		ISP:          verdict.ISP,
	}

	writeCached(ctx, t.store, cacheKey, payload, t.ttl, t.logger)
	return successOutcome(t.provider.Name(), payload)
}

// riskTier maps an abuse-confidence score to the four-level tier using
// fixed thresholds
func riskTier(score int) string {
	switch {
	case score >= 75:
		return riskCritical
	case score >= 50:
		return riskHigh
	case score >= 25:
		return riskMedium
	default:
		return riskLow
	}
}

// validDottedQuad validates strict dotted-quad IPv4 syntax including the
// per-octet 0-255 range. Other textual IP forms are rejected.
func validDottedQuad(ip string) bool {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return false
	}
	for _, octet := range octets {
		if octet == "" || len(octet) > 3 {
			return false
		}
		for _, r := range octet {
			if r < '0' || r > '9' {
				return false
			}
		}
		value, err := strconv.Atoi(octet)
		if err != nil || value > 255 {
			return false
		}
	}
	return true
}

// readCached fetches and decodes a cached payload; any error is treated
// as a miss because the cache is an optimization, not a source of truth
func readCached[T any](ctx context.Context, store core.KeyValueStore, key string) *T {
	if store == nil {
		return nil
	}
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil
	}
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return &payload
}

// writeCached stores a payload with the fixed TTL, logging rather than
// failing on error
func writeCached(ctx context.Context, store core.KeyValueStore, key string, payload interface{}, ttl time.Duration, logger *zap.Logger) {
	if store == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode cache entry", zap.Error(err), zap.String("key", key))
		return
	}
	if err := store.Set(ctx, key, raw, ttl); err != nil {
		logger.Error("Failed to store cache entry", zap.Error(err), zap.String("key", key))
	}
}
