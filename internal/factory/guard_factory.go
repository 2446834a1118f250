package factory

import (
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/guard"
	"go.uber.org/zap"
)

// GuardFactory assembles the inbound gatekeeper chain
type GuardFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGuardFactory creates a new guard factory
func NewGuardFactory(cfg *config.Config, logger *zap.Logger) *GuardFactory {
	return &GuardFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateGatekeeper creates the configured guard chain. The loop guard is
// always present; rate limiting and dedup are optional and share the
// cache store.
func (f *GuardFactory) CreateGatekeeper(store core.KeyValueStore) (core.Gatekeeper, error) {
	guardCfg, err := f.cfg.GetGuard()
	if err != nil {
		return nil, err
	}

	guards := []core.Gatekeeper{
		guard.NewLoopGuard(guardCfg.OwnDomain, guardCfg.ServiceAddress, guardCfg.MaxReplyDepth, f.logger),
	}
	if guardCfg.RateLimitEnabled {
		guards = append(guards, guard.NewRateGuard(store, guardCfg.RateLimitMax, guardCfg.RateLimitWindow, f.logger))
	}
	if guardCfg.DedupEnabled {
		guards = append(guards, guard.NewDedupGuard(store, guardCfg.DedupTTL, f.logger))
	}
	return guard.NewChain(guards...), nil
}
