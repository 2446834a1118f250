package factory

import (
	"fmt"

	"github.com/mikey/phish-triage/internal/adapters/reputation"
	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/tools"
	"go.uber.org/zap"
)

// ToolkitFactory assembles the analysis toolkit with its reputation
// providers and allowlist
type ToolkitFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewToolkitFactory creates a new toolkit factory
func NewToolkitFactory(cfg *config.Config, logger *zap.Logger) *ToolkitFactory {
	return &ToolkitFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateToolkit creates the toolkit backed by the given cache store
func (f *ToolkitFactory) CreateToolkit(store core.KeyValueStore) (core.ToolkitFactory, error) {
	repCfg, err := f.cfg.GetReputation()
	if err != nil {
		return nil, fmt.Errorf("invalid reputation configuration: %w", err)
	}
	analysisCfg, err := f.cfg.GetAnalysis()
	if err != nil {
		return nil, fmt.Errorf("invalid analysis configuration: %w", err)
	}

	urlProvider := reputation.NewVirusTotalClient(repCfg.VirusTotalAPIKey, repCfg.Timeout, f.logger)
	ipProvider := reputation.NewAbuseIPDBClient(repCfg.AbuseIPDBAPIKey, repCfg.MaxAgeDays, repCfg.Timeout, f.logger)

	urlTool := tools.NewURLReputationTool(urlProvider, store, repCfg.CacheTTL, f.logger)
	ipTool := tools.NewIPReputationTool(ipProvider, store, repCfg.CacheTTL, f.logger)
	checker := allowlist.NewChecker(analysisCfg.AllowlistedDomains, f.logger)

	return tools.NewToolkit(urlTool, ipTool, checker, f.logger), nil
}
