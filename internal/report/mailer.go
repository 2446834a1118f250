package report

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// Mailer delivers analysis reports back to the reporter over SMTP
type Mailer struct {
	address       string
	from          string
	username      string
	password      string
	subjectPrefix string
	logger        *zap.Logger
}

// NewMailer creates a new SMTP report mailer
func NewMailer(address, from, username, password, subjectPrefix string, logger *zap.Logger) *Mailer {
	return &Mailer{
		address:       address,
		from:          from,
		username:      username,
		password:      password,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

// Deliver sends the rendered report to the address that submitted the
// message
func (m *Mailer) Deliver(ctx context.Context, email *core.NormalizedEmail, record *core.AnalysisRecord) error {
	recipient, err := extractAddress(email.Sender)
	if err != nil {
		return fmt.Errorf("no deliverable reporter address: %w", err)
	}

	message := m.buildMessage(recipient, email, record)

	var auth sasl.Client
	if m.username != "" {
		auth = sasl.NewPlainClient("", m.username, m.password)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.address, auth, m.from, []string{recipient}, strings.NewReader(message))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send report: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("Delivered analysis report",
		zap.String("recipient", recipient),
		zap.String("verdict", string(record.Verdict)))
	return nil
}

// buildMessage assembles the full RFC 5322 message for the report
func (m *Mailer) buildMessage(recipient string, email *core.NormalizedEmail, record *core.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(m.subjectPrefix, email, record))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "X-Phish-Triage: report\r\n")
	fmt.Fprintf(&b, "Auto-Submitted: auto-replied\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&b, "\r\n")
	b.WriteString(strings.ReplaceAll(Render(email, record), "\n", "\r\n"))
	return b.String()
}

// extractAddress pulls the bare address out of a possibly display-named
// sender header
func extractAddress(sender string) (string, error) {
	parsed, err := mail.ParseAddress(sender)
	if err != nil {
		return "", err
	}
	return parsed.Address, nil
}

// LogSink writes analysis results to the log instead of delivering mail.
// It is the sink of record when SMTP report delivery is disabled.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the analysis result
func (s *LogSink) Deliver(_ context.Context, email *core.NormalizedEmail, record *core.AnalysisRecord) error {
	s.logger.Info("Analysis result",
		zap.String("sender", email.Sender),
		zap.String("subject", email.Subject),
		zap.String("verdict", string(record.Verdict)),
		zap.Int("confidence", record.Confidence),
		zap.Int("threats", len(record.Threats)),
		zap.Int("tool_calls", len(record.ToolCalls)),
		zap.Duration("elapsed", record.Metadata.Elapsed))
	return nil
}
