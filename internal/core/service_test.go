package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedGate admits or rejects everything
type fixedGate struct {
	admit  bool
	reason string
}

func (g *fixedGate) Admit(_ context.Context, _ *NormalizedEmail) (bool, string) {
	return g.admit, g.reason
}

// recordingSink captures delivered records
type recordingSink struct {
	delivered []*AnalysisRecord
	err       error
}

func (s *recordingSink) Deliver(_ context.Context, _ *NormalizedEmail, record *AnalysisRecord) error {
	s.delivered = append(s.delivered, record)
	return s.err
}

func newTestService(model ModelClient, gate Gatekeeper, sink ReportSink) *TriageService {
	analyzer := NewAnalyzer(model, &staticToolkit{dispatcher: &countingDispatcher{}}, zap.NewNop(), testConfig())
	return NewTriageService(analyzer, gate, sink, zap.NewNop())
}

func TestServiceProcessDeliversReport(t *testing.T) {
	model := &scriptedModel{script: []ModelTurn{finishedTurn(validFinalPayload)}}
	sink := &recordingSink{}
	service := newTestService(model, &fixedGate{admit: true}, sink)

	record, err := service.Process(context.Background(), testEmail())

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, VerdictMalicious, record.Verdict)
	require.Len(t, sink.delivered, 1)
	assert.Same(t, record, sink.delivered[0])
}

func TestServiceProcessGuardDrop(t *testing.T) {
	model := &scriptedModel{}
	sink := &recordingSink{}
	service := newTestService(model, &fixedGate{admit: false, reason: "duplicate"}, sink)

	record, err := service.Process(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Empty(t, sink.delivered, "dropped email must not reach the sink")
	assert.Empty(t, model.calls, "dropped email must not reach the model")
}

func TestServiceProcessSinkFailure(t *testing.T) {
	model := &scriptedModel{script: []ModelTurn{finishedTurn(validFinalPayload)}}
	sink := &recordingSink{err: errors.New("smtp down")}
	service := newTestService(model, nil, sink)

	record, err := service.Process(context.Background(), testEmail())

	// Delivery failure is logged, not propagated; the record stands.
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestServiceProcessNilGateAndSink(t *testing.T) {
	model := &scriptedModel{script: []ModelTurn{finishedTurn(validFinalPayload)}}
	service := newTestService(model, nil, nil)

	record, err := service.Process(context.Background(), testEmail())

	require.NoError(t, err)
	require.NotNil(t, record)
}
