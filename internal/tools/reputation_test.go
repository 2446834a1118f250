package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeURLProvider is a scriptable URL reputation provider
type fakeURLProvider struct {
	configured bool
	verdict    *core.URLVerdict
	err        error
	calls      int
}

func (f *fakeURLProvider) Name() string { return "fake-url" }

func (f *fakeURLProvider) Configured() (bool, string) {
	return f.configured, "reputation.virustotal_api_key"
}

func (f *fakeURLProvider) Lookup(_ context.Context, _ string) (*core.URLVerdict, error) {
	f.calls++
	return f.verdict, f.err
}

// fakeIPProvider is a scriptable IP reputation provider
type fakeIPProvider struct {
	configured bool
	verdict    *core.IPVerdict
	err        error
	calls      int
}

func (f *fakeIPProvider) Name() string { return "fake-ip" }

func (f *fakeIPProvider) Configured() (bool, string) {
	return f.configured, "reputation.abuseipdb_api_key"
}

func (f *fakeIPProvider) Lookup(_ context.Context, _ string) (*core.IPVerdict, error) {
	f.calls++
	return f.verdict, f.err
}

// mapStore is a minimal in-memory KeyValueStore for tests
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string][]byte{}}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	return value, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapStore) Cleanup(_ context.Context) error { return nil }

func TestURLReputationMalformedInput(t *testing.T) {
	provider := &fakeURLProvider{configured: true}
	tool := NewURLReputationTool(provider, nil, time.Hour, zap.NewNop())

	for _, bad := range []string{"", "not a url", "ftp//missing", "/relative/path"} {
		outcome := tool.Check(context.Background(), bad)
		assert.False(t, outcome.Success, bad)
		assert.Contains(t, outcome.Error, "not a well-formed absolute URL")
	}
	assert.Equal(t, 0, provider.calls)
}

func TestURLReputationCredentialGate(t *testing.T) {
	provider := &fakeURLProvider{configured: false}
	tool := NewURLReputationTool(provider, nil, time.Hour, zap.NewNop())

	outcome := tool.Check(context.Background(), "https://example.com/x")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "reputation.virustotal_api_key")
	assert.Equal(t, 0, provider.calls, "unconfigured provider must not be called")
}

func TestURLReputationComputesRatioAndTruncatesVendors(t *testing.T) {
	provider := &fakeURLProvider{
		configured: true,
		verdict: &core.URLVerdict{
			TotalVendors:   20,
			FlaggedCount:   5,
			FlaggedVendors: []string{"a", "b", "c", "d", "e", "f", "g"},
		},
	}
	tool := NewURLReputationTool(provider, newMapStore(), time.Hour, zap.NewNop())

	outcome := tool.Check(context.Background(), "https://bad.example.com/login")
	require.True(t, outcome.Success)

	var payload urlReputationPayload
	require.NoError(t, json.Unmarshal(outcome.Payload, &payload))
	assert.True(t, payload.Malicious)
	assert.InDelta(t, 0.25, payload.Ratio, 1e-9)
	assert.Len(t, payload.FlaggedVendors, 5)
}

func TestURLReputationZeroFlagsIsClean(t *testing.T) {
	provider := &fakeURLProvider{
		configured: true,
		verdict:    &core.URLVerdict{TotalVendors: 20, FlaggedCount: 0},
	}
	tool := NewURLReputationTool(provider, nil, time.Hour, zap.NewNop())

	outcome := tool.Check(context.Background(), "https://clean.example.com/")
	require.True(t, outcome.Success)

	var payload urlReputationPayload
	require.NoError(t, json.Unmarshal(outcome.Payload, &payload))
	assert.False(t, payload.Malicious)
	assert.Zero(t, payload.Ratio)
}

func TestURLReputationCacheHit(t *testing.T) {
	provider := &fakeURLProvider{
		configured: true,
		verdict:    &core.URLVerdict{TotalVendors: 10, FlaggedCount: 1},
	}
	store := newMapStore()
	tool := NewURLReputationTool(provider, store, time.Hour, zap.NewNop())

	first := tool.Check(context.Background(), "https://cached.example.com/")
	require.True(t, first.Success)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, provider.calls)

	second := tool.Check(context.Background(), "https://cached.example.com/")
	require.True(t, second.Success)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, provider.calls, "second lookup must come from cache")
}

func TestURLReputationProviderError(t *testing.T) {
	provider := &fakeURLProvider{configured: true, err: errors.New("upstream 500")}
	tool := NewURLReputationTool(provider, nil, time.Hour, zap.NewNop())

	outcome := tool.Check(context.Background(), "https://example.com/")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "upstream 500")
}

func TestIPReputationRejectsNonDottedQuad(t *testing.T) {
	provider := &fakeIPProvider{configured: true}
	tool := NewIPReputationTool(provider, nil, time.Hour, zap.NewNop())

	for _, bad := range []string{"", "256.1.1.1", "1.2.3", "1.2.3.4.5", "2001:db8::1", "a.b.c.d", "01.2.3.1234"} {
		outcome := tool.Check(context.Background(), bad)
		assert.False(t, outcome.Success, bad)
	}
	assert.Equal(t, 0, provider.calls)
}

func TestIPReputationRiskTiers(t *testing.T) {
	cases := []struct {
		score     int
		tier      string
		malicious bool
	}{
		{0, riskLow, false},
		{24, riskLow, false},
		{25, riskMedium, false},
		{49, riskMedium, false},
		{50, riskHigh, true},
		{74, riskHigh, true},
		{75, riskCritical, true},
		{100, riskCritical, true},
	}

	for _, tc := range cases {
		provider := &fakeIPProvider{
			configured: true,
			verdict:    &core.IPVerdict{AbuseScore: tc.score},
		}
		tool := NewIPReputationTool(provider, nil, time.Hour, zap.NewNop())

		outcome := tool.Check(context.Background(), "203.0.113.7")
		require.True(t, outcome.Success)

		var payload ipReputationPayload
		require.NoError(t, json.Unmarshal(outcome.Payload, &payload))
		assert.Equal(t, tc.tier, payload.RiskTier, "score %d", tc.score)
		assert.Equal(t, tc.malicious, payload.Malicious, "score %d", tc.score)
	}
}

func TestIPReputationCacheHit(t *testing.T) {
	provider := &fakeIPProvider{
		configured: true,
		verdict:    &core.IPVerdict{AbuseScore: 80, TotalReports: 12, CountryCode: "NL"},
	}
	store := newMapStore()
	tool := NewIPReputationTool(provider, store, time.Hour, zap.NewNop())

	first := tool.Check(context.Background(), "198.51.100.4")
	require.True(t, first.Success)
	second := tool.Check(context.Background(), "198.51.100.4")
	require.True(t, second.Success)

	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, provider.calls)

	var payload ipReputationPayload
	require.NoError(t, json.Unmarshal(second.Payload, &payload))
	assert.Equal(t, 80, payload.AbuseScore)
	assert.Equal(t, "NL", payload.CountryCode)
}
