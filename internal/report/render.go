// Package report renders analysis results and delivers them back to the
// reporter.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/phish-triage/internal/core"
)

const timeRounding = time.Millisecond

// Render produces the plain-text report body for an analysis record
func Render(email *core.NormalizedEmail, record *core.AnalysisRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Phishing triage report\n")
	fmt.Fprintf(&b, "======================\n\n")
	fmt.Fprintf(&b, "Message:    %s\n", email.Subject)
	fmt.Fprintf(&b, "From:       %s\n", email.Sender)
	fmt.Fprintf(&b, "Verdict:    %s (confidence %d%%)\n\n", strings.ToUpper(string(record.Verdict)), record.Confidence)

	fmt.Fprintf(&b, "%s\n\n", record.Summary)

	fmt.Fprintf(&b, "Authentication\n")
	fmt.Fprintf(&b, "  SPF:   %s\n", record.Authentication.SPF)
	fmt.Fprintf(&b, "  DKIM:  %s\n", record.Authentication.DKIM)
	fmt.Fprintf(&b, "  DMARC: %s\n\n", record.Authentication.DMARC)

	if len(record.Threats) > 0 {
		fmt.Fprintf(&b, "Findings\n")
		for _, threat := range record.Threats {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", strings.ToUpper(string(threat.Severity)), threat.Category, threat.Description)
			if threat.Evidence != "" {
				fmt.Fprintf(&b, "         evidence: %s\n", threat.Evidence)
			}
		}
		b.WriteString("\n")
	}

	if len(record.Reasoning) > 0 {
		fmt.Fprintf(&b, "Reasoning\n")
		for _, line := range record.Reasoning {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
		b.WriteString("\n")
	}

	if len(record.ToolCalls) > 0 {
		fmt.Fprintf(&b, "Checks performed\n")
		for _, call := range record.ToolCalls {
			status := "ok"
			if call.Outcome == nil || !call.Outcome.Success {
				status = "failed"
			}
			fmt.Fprintf(&b, "  - %s (%s, %s)\n", call.Tool, status, call.Duration.Round(timeRounding))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Analyzed by %s in %s.\n", record.Metadata.Model, record.Metadata.Elapsed.Round(timeRounding))

	return b.String()
}

// Subject produces the report subject line for an analysis record
func Subject(prefix string, email *core.NormalizedEmail, record *core.AnalysisRecord) string {
	subject := email.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return fmt.Sprintf("%s[%s] %s", prefix, record.Verdict, subject)
}
