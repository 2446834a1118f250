package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/factory"
	"github.com/mikey/phish-triage/internal/logging"
	"github.com/mikey/phish-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewToolkitFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewGuardFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSinkFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewIngestFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register model client
	if err := container.Provide(func(f *factory.LLMFactory) (core.ModelClient, error) {
		return f.CreateModelClient(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register key-value store
	if err := container.Provide(func(f *factory.CacheFactory) (core.KeyValueStore, error) {
		return f.CreateKeyValueStore()
	}); err != nil {
		return nil, err
	}

	// Register toolkit
	if err := container.Provide(func(f *factory.ToolkitFactory, store core.KeyValueStore) (core.ToolkitFactory, error) {
		return f.CreateToolkit(store)
	}); err != nil {
		return nil, err
	}

	// Register analyzer configuration
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.AnalyzerConfig, error) {
		analysisCfg, err := cfg.GetAnalysis()
		if err != nil {
			return core.AnalyzerConfig{}, err
		}
		logger.Info("Loaded analysis budgets",
			zap.Duration("total_budget", analysisCfg.TotalBudget),
			zap.Duration("tool_phase_budget", analysisCfg.ToolPhaseBudget),
			zap.Int("max_iterations", analysisCfg.MaxIterations),
			zap.Int("max_tool_calls", analysisCfg.MaxToolCalls))
		return core.AnalyzerConfig{
			MaxIterations:     analysisCfg.MaxIterations,
			MaxToolCalls:      analysisCfg.MaxToolCalls,
			TotalBudget:       analysisCfg.TotalBudget,
			ToolPhaseBudget:   analysisCfg.ToolPhaseBudget,
			ModelCallTimeout:  analysisCfg.ModelCallTimeout,
			FallbackTimeout:   analysisCfg.FallbackTimeout,
			FallbackMinBudget: analysisCfg.FallbackMinBudget,
			ToolTimeout:       analysisCfg.ToolTimeout,
		}, nil
	}); err != nil {
		return nil, err
	}

	// Register analyzer
	if err := container.Provide(core.NewAnalyzer); err != nil {
		return nil, err
	}

	// Register gatekeeper
	if err := container.Provide(func(f *factory.GuardFactory, store core.KeyValueStore) (core.Gatekeeper, error) {
		return f.CreateGatekeeper(store)
	}); err != nil {
		return nil, err
	}

	// Register report sink
	if err := container.Provide(func(f *factory.SinkFactory) core.ReportSink {
		return f.CreateReportSink()
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(core.NewTriageService); err != nil {
		return nil, err
	}

	// Register ingest servers
	if err := container.Provide(func(f *factory.IngestFactory, service *core.TriageService) []core.IngestServer {
		return f.CreateServers(service)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
