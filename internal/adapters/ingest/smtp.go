package ingest

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/mailparse"
	"go.uber.org/zap"
)

// SMTPServer accepts forwarded suspicious emails over SMTP. Messages are
// acknowledged as soon as they parse; analysis runs asynchronously so
// the submitting relay never waits on a model call.
type SMTPServer struct {
	service *core.TriageService
	server  *smtp.Server
	logger  *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// NewSMTPServer creates a new SMTP ingest server
func NewSMTPServer(service *core.TriageService, listenAddress, domain string, maxMessageBytes int64, logger *zap.Logger) *SMTPServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SMTPServer{
		service: service,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	server := smtp.NewServer(s)
	server.Addr = listenAddress
	server.Domain = domain
	server.MaxMessageBytes = maxMessageBytes
	server.MaxRecipients = 10
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	s.server = server
	return s
}

// NewSession implements the go-smtp backend interface
func (s *SMTPServer) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{parent: s}, nil
}

// Start begins accepting connections. It blocks until the server stops.
func (s *SMTPServer) Start() error {
	s.logger.Info("Starting SMTP ingest server",
		zap.String("address", s.server.Addr),
		zap.String("domain", s.server.Domain))
	return s.server.ListenAndServe()
}

// Stop closes the listener and waits for queued analyses to finish
func (s *SMTPServer) Stop() error {
	s.logger.Info("Stopping SMTP ingest server")
	err := s.server.Close()
	s.pending.Wait()
	s.cancel()
	return err
}

// enqueue hands a parsed email to the triage service off the SMTP
// connection's goroutine
func (s *SMTPServer) enqueue(email *core.NormalizedEmail) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if _, err := s.service.Process(s.ctx, email); err != nil {
			s.logger.Error("Triage failed for SMTP submission",
				zap.String("sender", email.Sender),
				zap.Error(err))
		}
	}()
}

// smtpSession is one SMTP transaction
type smtpSession struct {
	parent *SMTPServer
	from   string
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *smtpSession) Rcpt(_ string, _ *smtp.RcptOptions) error {
	return nil
}

// Data parses the message and queues it for analysis. The 250 reply is
// sent once the message parses; the sender does not wait for a verdict.
func (s *smtpSession) Data(r io.Reader) error {
	email, err := mailparse.Parse(r)
	if err != nil {
		s.parent.logger.Warn("Rejecting unparsable SMTP submission",
			zap.String("envelope_from", s.from),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be parsed",
		}
	}
	if email.Sender == "" {
		email.Sender = s.from
	}
	s.parent.enqueue(email)
	return nil
}

func (s *smtpSession) Reset() {
	s.from = ""
}

func (s *smtpSession) Logout() error {
	return nil
}
