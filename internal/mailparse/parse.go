// Package mailparse converts raw RFC 5322 messages into the normalized
// form consumed by the analysis pipeline.
package mailparse

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const maxPartDepth = 8

// wordDecoder decodes RFC 2047 encoded words in header values, falling
// back to the raw value when the charset is unknown.
var wordDecoder = &mime.WordDecoder{
	CharsetReader: charsetReader,
}

// Parse reads a raw message and produces a normalized email. Parsing is
// best-effort: a message with broken MIME structure still yields an
// email with whatever could be recovered.
func Parse(raw io.Reader) (*core.NormalizedEmail, error) {
	msg, err := mail.ReadMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	email := &core.NormalizedEmail{
		Sender:     decodeHeader(msg.Header.Get("From")),
		Recipient:  decodeHeader(msg.Header.Get("To")),
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		Headers:    map[string]string{},
		ReceivedAt: time.Now().UTC(),
	}
	for name, values := range msg.Header {
		if len(values) > 0 {
			email.Headers[strings.ToLower(name)] = values[0]
		}
	}
	if date, err := msg.Header.Date(); err == nil {
		email.ReceivedAt = date.UTC()
	}

	var text, html bytes.Buffer
	collectParts(msg.Body, msg.Header, &text, &html, 0)
	email.Body = strings.TrimSpace(text.String())
	email.HTMLBody = strings.TrimSpace(html.String())

	// HTML-only messages still need something for the model to read.
	if email.Body == "" && email.HTMLBody != "" {
		email.Body = stripTags(email.HTMLBody)
	}

	return email, nil
}

// headerGetter is the subset of header behavior the part walker needs,
// satisfied by both mail.Header and textproto.MIMEHeader
type headerGetter interface {
	Get(key string) string
}

// collectParts walks the MIME tree accumulating text and HTML bodies
func collectParts(body io.Reader, header headerGetter, text, html *bytes.Buffer, depth int) {
	if depth > maxPartDepth {
		return
	}

	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			collectParts(part, part.Header, text, html, depth+1)
		}
	}

	disposition := strings.ToLower(header.Get("Content-Disposition"))
	if strings.HasPrefix(disposition, "attachment") {
		return
	}

	decoded := decodeBody(body, header.Get("Content-Transfer-Encoding"), params["charset"])
	switch {
	case mediaType == "text/html":
		html.WriteString(decoded)
		html.WriteString("\n")
	case strings.HasPrefix(mediaType, "text/"):
		text.WriteString(decoded)
		text.WriteString("\n")
	}
}

// decodeBody undoes the transfer encoding and converts the charset to
// UTF-8
func decodeBody(body io.Reader, encoding, charset string) string {
	var reader io.Reader = body
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		reader = quotedprintable.NewReader(body)
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, newBase64Cleaner(body))
	}

	if converted, err := charsetReader(charset, reader); err == nil {
		reader = converted
	}

	raw, err := io.ReadAll(reader)
	if err != nil && len(raw) == 0 {
		return ""
	}
	return string(raw)
}

// charsetReader converts a reader in the named charset to UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return input, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// decodeHeader decodes RFC 2047 encoded words in a header value
func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// base64Cleaner strips whitespace so line-wrapped base64 bodies decode
type base64Cleaner struct {
	source io.Reader
}

func newBase64Cleaner(source io.Reader) *base64Cleaner {
	return &base64Cleaner{source: source}
}

func (c *base64Cleaner) Read(p []byte) (int, error) {
	buf := make([]byte, len(p))
	n, err := c.source.Read(buf)
	out := 0
	for _, b := range buf[:n] {
		switch b {
		case '\r', '\n', ' ', '\t':
			continue
		default:
			p[out] = b
			out++
		}
	}
	return out, err
}

// stripTags produces a crude plain-text rendering of an HTML body
func stripTags(html string) string {
	var out strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			out.WriteRune(' ')
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}
