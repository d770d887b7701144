// Package bouncer decides, per client IP, whether to let a request through,
// block it, or force it through a captcha challenge, based on decisions
// fetched from a remote decision service.
//
// # Features
//
//   - Remediation priority merge over decision sets with fallback and cap
//     policies (bypass < captcha < ban by default)
//   - Per-IP captcha challenge state machine with self-expiring entries
//   - Trusted-forwarder resolution of the real client address from
//     X-Forwarded-For, honored only behind configured proxy ranges
//   - IPv4/IPv6 host and CIDR modeling on netip, including IPv4-mapped forms
//   - net/http middleware enforcing the resolved remediation
//   - Optional observability with context-aware logging and pluggable metrics
//
// # Basic Usage
//
// Wire a decision fetcher (the lapi subpackage talks to a CrowdSec-style
// local API) and mount the middleware:
//
//	client, err := lapi.New("http://localhost:8080", apiKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b, err := bouncer.New(client.Fetcher(),
//	    bouncer.TrustLoopbackForwarder(),
//	    bouncer.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.ListenAndServe(":8000", b.Middleware(mux))
//
// # Policy
//
// The remediation scale, the fallback for unrecognized decision types and
// the severity cap are explicit configuration, so independent engines with
// different policies can coexist in one process:
//
//	b, err := bouncer.New(fetch, bouncer.WithPolicy(bouncer.Policy{
//	    Scale:    []bouncer.Remediation{bouncer.RemediationBypass, bouncer.RemediationCaptcha, bouncer.RemediationBan},
//	    Fallback: bouncer.RemediationBan,
//	    Cap:      bouncer.RemediationCaptcha, // never outright ban
//	}))
//
// # Components
//
// The middleware is a thin composition; each piece is usable on its own:
// ClientAddressResolver derives the effective client address,
// Resolver computes the remediation for it, and ChallengeStore tracks
// issued captcha challenges. Resolver propagates decision-fetch errors
// unmodified — whether to fail open or closed on transport trouble is the
// host's call (the middleware defaults to open, see WithFailureMode).
//
// # Security Considerations
//
//   - X-Forwarded-For is honored only when the connection itself comes from
//     a configured trusted forwarder range; otherwise it is ignored and
//     logged. With no ranges configured it is never honored.
//   - The last unique header entry wins: a trusted chain appends its own
//     view of the client, so earlier, client-controlled values cannot spoof
//     the result.
//   - A malformed forwarded value never aborts the request; resolution
//     degrades to the raw remote address.
//   - Challenge answers are matched exactly and case-sensitively; entries
//     expire autonomously after their generation or resolution window.
//
// # Observability
//
// The Logger interface mirrors slog's *Context signatures, so *slog.Logger
// drops in directly; a charmbracelet/log adapter lives in the charmlog
// subpackage and a Prometheus metrics adapter in the prometheus subpackage.
// Security-significant events carry stable, greppable "event" attributes.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Engines are typically
// created once at application startup and shared across all requests.
package bouncer
