package tools

import (
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

// Ordered header variants consulted for each signal. The aggregated
// authentication-results header is always consulted last so a dedicated
// header wins when both are present.
var (
	spfReceivedHeaders = []string{"received-spf", "x-received-spf"}
	spfResultHeaders   = []string{"authentication-results"}
	dkimHeaders        = []string{"authentication-results", "x-authentication-results"}
	dmarcHeaders       = []string{"authentication-results", "x-authentication-results", "dmarc-results"}
)

// authSignal is one classified authentication signal with its raw header
// snippet for auditability
type authSignal struct {
	Result core.AuthResult `json:"result"`
	Header string          `json:"header,omitempty"`
}

// checkAuthenticationPayload is the tool-specific result shape
type checkAuthenticationPayload struct {
	SPF   authSignal `json:"spf"`
	DKIM  authSignal `json:"dkim"`
	DMARC authSignal `json:"dmarc"`
}

// checkAuthentication classifies the SPF, DKIM and DMARC signals from the
// email headers. It is a pure function of the headers and never fails;
// absent headers simply classify as none.
func checkAuthentication(email *core.NormalizedEmail) *core.ToolOutcome {
	payload := checkAuthenticationPayload{
		SPF:   classifySPF(email),
		DKIM:  classifyDKIM(email),
		DMARC: classifyToken(email, dmarcHeaders, "dmarc"),
	}
	return successOutcome(sourceLocal, payload)
}

// classifySPF classifies the SPF signal. Dedicated Received-SPF headers
// open with a bare result word, so the whole value is scanned; the
// aggregated authentication-results header reports several mechanisms in
// one value and is read only through its spf= token, so a dkim=pass in
// the same header cannot shadow an SPF fail. A value containing
// "softfail" must classify as softfail and never fall through to fail.
func classifySPF(email *core.NormalizedEmail) authSignal {
	for _, name := range spfReceivedHeaders {
		value := email.Header(name)
		if value == "" {
			continue
		}
		lower := strings.ToLower(value)
		switch {
		case strings.Contains(lower, "softfail"):
			return authSignal{Result: core.AuthSoftfail, Header: snippet(value)}
		case strings.Contains(lower, "pass"):
			return authSignal{Result: core.AuthPass, Header: snippet(value)}
		case strings.Contains(lower, "neutral"):
			return authSignal{Result: core.AuthNeutral, Header: snippet(value)}
		case strings.Contains(lower, "fail"):
			return authSignal{Result: core.AuthFail, Header: snippet(value)}
		}
		return authSignal{Result: core.AuthNone, Header: snippet(value)}
	}
	return classifyToken(email, spfResultHeaders, "spf")
}

// classifyDKIM classifies the DKIM signal. Only an explicit dkim= token
// counts: a DKIM-Signature header is attacher-supplied, not
// verifier-supplied, and must never infer a pass on its own.
func classifyDKIM(email *core.NormalizedEmail) authSignal {
	sig := classifyToken(email, dkimHeaders, "dkim")
	if sig.Result != core.AuthNone {
		return sig
	}
	// Surface the raw signature for audit without classifying it.
	if raw := email.Header("dkim-signature"); raw != "" {
		return authSignal{Result: core.AuthNone, Header: snippet(raw)}
	}
	return sig
}

// classifyToken classifies a signal from an explicit "<token>=result"
// marker in one of the candidate headers
func classifyToken(email *core.NormalizedEmail, headers []string, token string) authSignal {
	marker := token + "="
	for _, name := range headers {
		value := email.Header(name)
		if value == "" {
			continue
		}
		lower := strings.ToLower(value)
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := lower[idx+len(marker):]
		switch {
		case strings.HasPrefix(rest, "pass"):
			return authSignal{Result: core.AuthPass, Header: snippet(value)}
		case strings.HasPrefix(rest, "fail"):
			return authSignal{Result: core.AuthFail, Header: snippet(value)}
		case strings.HasPrefix(rest, "neutral"):
			return authSignal{Result: core.AuthNeutral, Header: snippet(value)}
		case strings.HasPrefix(rest, "softfail"):
			return authSignal{Result: core.AuthSoftfail, Header: snippet(value)}
		}
		return authSignal{Result: core.AuthNone, Header: snippet(value)}
	}
	return authSignal{Result: core.AuthNone}
}

// snippet bounds a raw header value for the audit trail
func snippet(value string) string {
	const maxSnippet = 200
	if len(value) > maxSnippet {
		return value[:maxSnippet] + "..."
	}
	return value
}
