// Package ingest provides the inbound listeners that accept suspicious
// emails for analysis.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/mailparse"
	"go.uber.org/zap"
)

// analyzeRequest is the JSON submission shape for the webhook
type analyzeRequest struct {
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	HTMLBody  string            `json:"html_body,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// errorResponse is the JSON error shape for the webhook
type errorResponse struct {
	Error string `json:"error"`
}

// WebhookServer accepts analysis submissions over HTTP
type WebhookServer struct {
	service *core.TriageService
	server  *http.Server
	logger  *zap.Logger
}

// NewWebhookServer creates a new webhook ingest server
func NewWebhookServer(service *core.TriageService, listenAddress string, logger *zap.Logger) *WebhookServer {
	s := &WebhookServer{
		service: service,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/analyze", s.handleAnalyze)

	s.server = &http.Server{
		Addr:              listenAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving submissions. It blocks until the server stops.
func (s *WebhookServer) Start() error {
	s.logger.Info("Starting webhook ingest server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *WebhookServer) Stop() error {
	s.logger.Info("Stopping webhook ingest server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *WebhookServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleAnalyze accepts either a JSON submission or a raw RFC 5322
// message (Content-Type message/rfc822) and runs it through triage
// synchronously, returning the analysis record.
func (s *WebhookServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	email, err := s.decodeSubmission(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.service.Process(r.Context(), email)
	if err != nil {
		s.logger.Error("Triage failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	if record == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "message rejected by inbound guard")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		s.logger.Error("Failed to encode analysis record", zap.Error(err))
	}
}

func (s *WebhookServer) decodeSubmission(r *http.Request) (*core.NormalizedEmail, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "message/rfc822") {
		return mailparse.Parse(r.Body)
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	for name, value := range req.Headers {
		headers[strings.ToLower(name)] = value
	}
	return &core.NormalizedEmail{
		Sender:     req.Sender,
		Recipient:  req.Recipient,
		Subject:    req.Subject,
		Body:       req.Body,
		HTMLBody:   req.HTMLBody,
		Headers:    headers,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

func (s *WebhookServer) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
