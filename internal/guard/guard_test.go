package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// flakyStore is an in-memory KeyValueStore whose reads can be forced to
// fail, for exercising the fail-open paths
type flakyStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{data: map[string][]byte{}}
}

func (s *flakyStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	value, ok := s.data[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	return value, nil
}

func (s *flakyStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *flakyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *flakyStore) Cleanup(_ context.Context) error { return nil }

func TestLoopGuardAdmitsNormalMail(t *testing.T) {
	g := NewLoopGuard("triage.example", "triage@triage.example", 3, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{
		Sender:  "reporter@company.com",
		Subject: "Fwd: suspicious invoice",
		Headers: map[string]string{},
	})

	assert.True(t, ok)
}

func TestLoopGuardRejectsOwnAddress(t *testing.T) {
	g := NewLoopGuard("triage.example", "triage@triage.example", 3, zap.NewNop())

	ok, reason := g.Admit(context.Background(), &core.NormalizedEmail{
		Sender: "Phish Triage <triage@triage.example>",
	})

	assert.False(t, ok)
	assert.Contains(t, reason, "service itself")
}

func TestLoopGuardRejectsOwnDomain(t *testing.T) {
	g := NewLoopGuard("triage.example", "", 3, zap.NewNop())

	ok, reason := g.Admit(context.Background(), &core.NormalizedEmail{
		Sender: "someone@triage.example",
	})

	assert.False(t, ok)
	assert.Contains(t, reason, "own domain")
}

func TestLoopGuardRejectsLoopMarkers(t *testing.T) {
	g := NewLoopGuard("", "", 3, zap.NewNop())

	for _, header := range []string{"x-phish-triage", "auto-submitted"} {
		ok, reason := g.Admit(context.Background(), &core.NormalizedEmail{
			Sender:  "reporter@company.com",
			Headers: map[string]string{header: "auto-replied"},
		})
		assert.False(t, ok, header)
		assert.Contains(t, reason, header)
	}
}

func TestLoopGuardAllowsAutoSubmittedNo(t *testing.T) {
	g := NewLoopGuard("", "", 3, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{
		Sender:  "reporter@company.com",
		Headers: map[string]string{"auto-submitted": "no"},
	})

	assert.True(t, ok)
}

func TestLoopGuardRejectsDeepReplyChains(t *testing.T) {
	g := NewLoopGuard("", "", 3, zap.NewNop())

	ok, reason := g.Admit(context.Background(), &core.NormalizedEmail{
		Sender:  "reporter@company.com",
		Subject: "Re: Re: RE: re: something",
	})

	assert.False(t, ok)
	assert.Contains(t, reason, "reply depth")

	ok, _ = g.Admit(context.Background(), &core.NormalizedEmail{
		Sender:  "reporter@company.com",
		Subject: "Re: Fwd: something",
	})
	assert.True(t, ok)
}

func TestRateGuardEnforcesWindow(t *testing.T) {
	store := newFlakyStore()
	g := NewRateGuard(store, 2, time.Hour, zap.NewNop())
	email := &core.NormalizedEmail{Sender: "reporter@company.com"}

	for i := 0; i < 2; i++ {
		ok, _ := g.Admit(context.Background(), email)
		assert.True(t, ok, "request %d", i)
	}

	ok, reason := g.Admit(context.Background(), email)
	assert.False(t, ok)
	assert.Contains(t, reason, "exceeded")
}

func TestRateGuardIsPerSender(t *testing.T) {
	store := newFlakyStore()
	g := NewRateGuard(store, 1, time.Hour, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{Sender: "a@company.com"})
	assert.True(t, ok)
	ok, _ = g.Admit(context.Background(), &core.NormalizedEmail{Sender: "b@company.com"})
	assert.True(t, ok)
}

func TestRateGuardFailsOpen(t *testing.T) {
	store := newFlakyStore()
	store.readErr = errors.New("connection refused")
	g := NewRateGuard(store, 1, time.Hour, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{Sender: "a@company.com"})

	assert.True(t, ok, "store failure must not block triage")
}

func TestDedupGuardRejectsRepeat(t *testing.T) {
	store := newFlakyStore()
	g := NewDedupGuard(store, time.Hour, zap.NewNop())
	email := &core.NormalizedEmail{
		Sender:  "reporter@company.com",
		Subject: "Fwd: invoice",
		Body:    "please check this",
	}

	ok, _ := g.Admit(context.Background(), email)
	assert.True(t, ok)

	ok, reason := g.Admit(context.Background(), email)
	assert.False(t, ok)
	assert.Contains(t, reason, "duplicate")
}

func TestDedupGuardAllowsDifferentBody(t *testing.T) {
	store := newFlakyStore()
	g := NewDedupGuard(store, time.Hour, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{Sender: "a@x.com", Subject: "s", Body: "one"})
	assert.True(t, ok)
	ok, _ = g.Admit(context.Background(), &core.NormalizedEmail{Sender: "a@x.com", Subject: "s", Body: "two"})
	assert.True(t, ok)
}

func TestDedupGuardFailsOpen(t *testing.T) {
	store := newFlakyStore()
	store.readErr = errors.New("disk error")
	g := NewDedupGuard(store, time.Hour, zap.NewNop())

	ok, _ := g.Admit(context.Background(), &core.NormalizedEmail{Sender: "a@x.com"})

	assert.True(t, ok)
}

func TestChainFirstRefusalWins(t *testing.T) {
	deny := NewLoopGuard("company.com", "", 3, zap.NewNop())
	store := newFlakyStore()
	rate := NewRateGuard(store, 10, time.Hour, zap.NewNop())
	chain := NewChain(deny, rate)

	ok, reason := chain.Admit(context.Background(), &core.NormalizedEmail{Sender: "me@company.com"})

	assert.False(t, ok)
	assert.Contains(t, reason, "own domain")
}

func TestChainEmptyAdmits(t *testing.T) {
	ok, _ := NewChain().Admit(context.Background(), &core.NormalizedEmail{Sender: "x@y.com"})
	assert.True(t, ok)
}
