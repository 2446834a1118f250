package core

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriageService is the core service for phishing triage: it runs the
// inbound guards, hands admitted emails to the analyzer, and passes the
// finished record to the report sink.
type TriageService struct {
	analyzer *Analyzer
	gate     Gatekeeper
	sink     ReportSink
	logger   *zap.Logger
}

// NewTriageService creates a new triage service. The gate and sink are
// optional; a nil gate admits everything and a nil sink drops reports.
func NewTriageService(analyzer *Analyzer, gate Gatekeeper, sink ReportSink, logger *zap.Logger) *TriageService {
	return &TriageService{
		analyzer: analyzer,
		gate:     gate,
		sink:     sink,
		logger:   logger,
	}
}

// Process triages one email. A nil record with a nil error means the
// email was dropped by a guard; the disposition is logged.
func (s *TriageService) Process(ctx context.Context, email *NormalizedEmail) (*AnalysisRecord, error) {
	id := uuid.NewString()
	logger := s.logger.With(
		zap.String("analysis_id", id),
		zap.String("sender", email.Sender))

	if s.gate != nil {
		admitted, reason := s.gate.Admit(ctx, email)
		if !admitted {
			logger.Info("Email dropped by guard", zap.String("reason", reason))
			return nil, nil
		}
	}

	record := s.analyzer.Analyze(ctx, email)

	if s.sink != nil {
		// Delivery failure does not invalidate the record; it already
		// stands on its own.
		if err := s.sink.Deliver(ctx, email, record); err != nil {
			logger.Error("Failed to deliver report", zap.Error(err))
		}
	}

	return record, nil
}
