package factory

import (
	"github.com/mikey/phish-triage/internal/adapters/ingest"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/report"
	"go.uber.org/zap"
)

// IngestFactory creates the inbound listeners
type IngestFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewIngestFactory creates a new ingest factory
func NewIngestFactory(cfg *config.Config, logger *zap.Logger) *IngestFactory {
	return &IngestFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateServers creates the webhook listener plus, when enabled, the
// SMTP listener
func (f *IngestFactory) CreateServers(service *core.TriageService) []core.IngestServer {
	ingestCfg := f.cfg.GetIngest()

	servers := []core.IngestServer{
		ingest.NewWebhookServer(service, ingestCfg.WebhookListenAddress, f.logger),
	}
	if ingestCfg.SMTPEnabled {
		servers = append(servers, ingest.NewSMTPServer(
			service,
			ingestCfg.SMTPListenAddress,
			ingestCfg.SMTPDomain,
			ingestCfg.SMTPMaxMessageBytes,
			f.logger,
		))
	}
	return servers
}

// SinkFactory creates report sinks
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReportSink creates the SMTP mailer when report delivery is
// enabled, otherwise a log sink
func (f *SinkFactory) CreateReportSink() core.ReportSink {
	reportCfg := f.cfg.GetReport()

	if !reportCfg.SMTPEnabled {
		return report.NewLogSink(f.logger)
	}
	return report.NewMailer(
		reportCfg.SMTPAddress,
		reportCfg.From,
		reportCfg.Username,
		reportCfg.Password,
		reportCfg.SubjectPrefix,
		f.logger,
	)
}
