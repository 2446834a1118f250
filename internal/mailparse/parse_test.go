package mailparse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleMessage(t *testing.T) {
	raw := "From: Alice <alice@example.com>\r\n" +
		"To: triage@service.example\r\n" +
		"Subject: Fwd: suspicious invoice\r\n" +
		"Date: Mon, 02 Jan 2023 15:04:05 +0000\r\n" +
		"Received-SPF: pass\r\n" +
		"\r\n" +
		"Please take a look at this.\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "Alice <alice@example.com>", email.Sender)
	assert.Equal(t, "triage@service.example", email.Recipient)
	assert.Equal(t, "Fwd: suspicious invoice", email.Subject)
	assert.Equal(t, "Please take a look at this.", email.Body)
	assert.Equal(t, "pass", email.Header("received-spf"))
	assert.Equal(t, time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC), email.ReceivedAt)
}

func TestParseMultipartAlternative(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: multipart\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"BOUND\"\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain part here\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html <b>part</b> here</p>\r\n" +
		"--BOUND--\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "plain part here", email.Body)
	assert.Contains(t, email.HTMLBody, "<b>part</b>")
}

func TestParseQuotedPrintable(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: qp\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=C3=A9 invoice=\r\n" +
		" attached\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "Café invoice attached", email.Body)
}

func TestParseBase64Body(t *testing.T) {
	// "click https://evil.example/verify" wrapped across lines
	raw := "From: a@example.com\r\n" +
		"Subject: b64\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"Y2xpY2sgaHR0cHM6Ly9ldmlsLmV4YW1w\r\n" +
		"bGUvdmVyaWZ5\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "click https://evil.example/verify", email.Body)
}

func TestParseEncodedSubject(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: =?UTF-8?B?VXJnZW50OiDigqwxMDAgcmVmdW5k?=\r\n" +
		"\r\n" +
		"body\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "Urgent: €100 refund", email.Subject)
}

func TestParseHTMLOnlyMessageGetsTextFallback(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: html only\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Verify your <b>account</b> now</p></body></html>\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Contains(t, email.HTMLBody, "<b>account</b>")
	assert.Equal(t, "Verify your account now", email.Body)
}

func TestParseSkipsAttachments(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: with attachment\r\n" +
		"Content-Type: multipart/mixed; boundary=\"BOUND\"\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"see attached\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; name=\"log.txt\"\r\n" +
		"Content-Disposition: attachment; filename=\"log.txt\"\r\n" +
		"\r\n" +
		"attachment content\r\n" +
		"--BOUND--\r\n"

	email, err := Parse(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "see attached", email.Body)
	assert.NotContains(t, email.Body, "attachment content")
}

func TestParseGarbageFails(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not an rfc 5322 message"))
	assert.Error(t, err)
}

func TestParseMissingDateUsesNow(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: no date\r\n\r\nbody\r\n"

	before := time.Now().UTC()
	email, err := Parse(strings.NewReader(raw))
	after := time.Now().UTC()

	require.NoError(t, err)
	assert.False(t, email.ReceivedAt.Before(before))
	assert.False(t, email.ReceivedAt.After(after))
}
