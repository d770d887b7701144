package bouncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Form fields of the challenge page protocol. A POST carrying refresh=1
// regenerates the captcha; otherwise captcha_answer is checked against the
// stored secret.
const (
	challengeAnswerField  = "captcha_answer"
	challengeRefreshField = "refresh"
)

type contextKey int

const remediationContextKey contextKey = iota

// RemediationFromContext returns the remediation the middleware recorded for
// this request, if any.
func RemediationFromContext(ctx context.Context) (Remediation, bool) {
	remediation, ok := ctx.Value(remediationContextKey).(Remediation)
	return remediation, ok
}

// Bouncer ties the engine together for serving: trusted-forwarder client
// address resolution, decision fetch and merge, and the captcha challenge
// flow, exposed as net/http middleware.
//
// Bouncer instances are safe for concurrent use and are typically created
// once at application startup.
type Bouncer struct {
	config     *config
	addresses  *ClientAddressResolver
	resolver   *Resolver
	challenges *ChallengeStore
}

// New creates a Bouncer around a decision fetcher. All components share one
// configuration; see the Option builders.
func New(fetch FetchDecisionsFunc, opts ...Option) (*Bouncer, error) {
	if fetch == nil {
		return nil, fmt.Errorf("decision fetcher cannot be nil")
	}

	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Bouncer{
		config:     cfg,
		addresses:  &ClientAddressResolver{config: cfg},
		resolver:   &Resolver{config: cfg, fetch: fetch},
		challenges: newChallengeStore(cfg),
	}, nil
}

// ResolveClientAddress derives the effective client address for a request.
func (b *Bouncer) ResolveClientAddress(ctx context.Context, remoteAddr, forwardedFor string) string {
	return b.addresses.ResolveClientAddress(ctx, remoteAddr, forwardedFor)
}

// Resolve computes the remediation for a client identifier.
func (b *Bouncer) Resolve(ctx context.Context, identifier string) (Remediation, error) {
	return b.resolver.Resolve(ctx, identifier)
}

// Challenges returns the bouncer's challenge store, for hosts that drive
// the challenge flow themselves.
func (b *Bouncer) Challenges() *ChallengeStore {
	return b.challenges
}

// Middleware returns a handler that enforces the resolved remediation:
// bypass continues to next with the remediation recorded in the request
// context, ban serves the blocked wall with status 403, captcha drives the
// challenge flow with status 401 until solved.
//
// Resolution failures follow the configured FailureMode; the default fails
// open.
func (b *Bouncer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		client := b.addresses.ResolveClientAddress(ctx, r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
		if ip := parseIP(client); ip.IsValid() {
			client = normalizeIP(ip).String()
		}

		remediation, err := b.resolver.Resolve(ctx, client)
		if err != nil {
			b.config.logger.WarnContext(ctx, "remediation resolution failed",
				"event", "resolution_failed",
				"ip", client,
				"failure_mode", b.config.failureMode.String(),
				"error", err.Error(),
			)
			b.applyFailureMode(ctx, w, r, next)
			return
		}

		r = r.WithContext(context.WithValue(ctx, remediationContextKey, remediation))
		ctx = r.Context()

		switch remediation {
		case RemediationBypass:
			next.ServeHTTP(w, r)
		case RemediationBan:
			b.serveBlocked(ctx, w)
		case RemediationCaptcha:
			b.serveChallenge(ctx, w, r, client, next)
		default:
			b.config.logger.WarnContext(ctx, "unhandled remediation kind",
				"event", "unhandled_remediation",
				"remediation", string(remediation),
			)
			b.applyFailureMode(ctx, w, r, next)
		}
	})
}

func (b *Bouncer) applyFailureMode(ctx context.Context, w http.ResponseWriter, r *http.Request, next http.Handler) {
	if b.config.failureMode == FailureModeClosed {
		b.serveBlocked(ctx, w)
		return
	}
	next.ServeHTTP(w, r)
}

func (b *Bouncer) serveBlocked(ctx context.Context, w http.ResponseWriter) {
	markup, err := b.config.renderer.RenderBlocked(ctx)
	if err != nil {
		b.config.logger.WarnContext(ctx, "blocked wall rendering failed",
			"event", "render_failed",
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	io.WriteString(w, markup)
}

// serveChallenge drives the per-identifier challenge state machine for one
// request. Solved identifiers pass straight through; a correct POSTed
// answer redirects back to the original URL so the retried request hits the
// solved path.
func (b *Bouncer) serveChallenge(ctx context.Context, w http.ResponseWriter, r *http.Request, id string, next http.Handler) {
	if b.challenges.Status(id) == ChallengeSolved {
		b.config.logger.DebugContext(ctx, "challenge already solved",
			"event", "challenge_already_solved",
			"ip", id,
		)
		next.ServeHTTP(w, r)
		return
	}

	failed := false
	if r.Method == http.MethodPost {
		refresh := r.PostFormValue(challengeRefreshField) == "1"
		answer := r.PostFormValue(challengeAnswerField)

		if refresh || answer != "" {
			result, err := b.challenges.Submit(ctx, id, answer, refresh)
			if err != nil {
				b.config.logger.WarnContext(ctx, "challenge submission failed",
					"event", "challenge_error",
					"ip", id,
					"error", err.Error(),
				)
				b.applyFailureMode(ctx, w, r, next)
				return
			}

			switch result {
			case SubmitAccepted:
				http.Redirect(w, r, r.URL.RequestURI(), http.StatusFound)
				return
			case SubmitRejected:
				failed = true
			}
		}
	}

	secret, err := b.challenges.Ensure(ctx, id)
	if err != nil {
		b.config.logger.WarnContext(ctx, "challenge issuance failed",
			"event", "challenge_error",
			"ip", id,
			"error", err.Error(),
		)
		b.applyFailureMode(ctx, w, r, next)
		return
	}
	if secret == "" {
		// Solved concurrently between Status and Ensure.
		next.ServeHTTP(w, r)
		return
	}

	markup, err := b.config.renderer.RenderChallenge(ctx, ChallengeView{Secret: secret, Failed: failed})
	if err != nil {
		b.config.logger.WarnContext(ctx, "challenge wall rendering failed",
			"event", "render_failed",
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, markup)
}
