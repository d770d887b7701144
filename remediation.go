package bouncer

import (
	"context"
	"fmt"
)

// Remediation is the action applied to a request. The built-in kinds cover
// the common scale, but any string can participate in a custom Policy.
type Remediation string

const (
	// RemediationBypass lets the request through untouched.
	RemediationBypass Remediation = "bypass"
	// RemediationCaptcha forces the request through a challenge.
	RemediationCaptcha Remediation = "captcha"
	// RemediationBan blocks the request.
	RemediationBan Remediation = "ban"
)

// Policy configures how a set of decisions collapses into one remediation.
type Policy struct {
	// Scale orders remediation kinds by ascending severity. Scale[0] is the
	// least restrictive and is returned when no decision matches.
	Scale []Remediation

	// Fallback substitutes for any decision type absent from Scale.
	Fallback Remediation

	// Cap clamps the merged remediation: a result more severe than Cap is
	// replaced by Cap.
	Cap Remediation
}

// DefaultPolicy returns the bypass < captcha < ban scale with ban as both
// fallback and cap.
func DefaultPolicy() Policy {
	return Policy{
		Scale:    []Remediation{RemediationBypass, RemediationCaptcha, RemediationBan},
		Fallback: RemediationBan,
		Cap:      RemediationBan,
	}
}

// Validate checks structural policy invariants: a non-empty duplicate-free
// scale, and fallback and cap both members of it. Errors wrap
// ErrMisconfiguredPolicy.
func (p Policy) Validate() error {
	if len(p.Scale) == 0 {
		return &PolicyError{Field: "scale", Reason: "at least one remediation required"}
	}

	seen := make(map[Remediation]struct{}, len(p.Scale))
	for _, r := range p.Scale {
		if r == "" {
			return &PolicyError{Field: "scale", Reason: "remediation kinds cannot be empty"}
		}
		if _, ok := seen[r]; ok {
			return &PolicyError{Field: "scale", Value: string(r), Reason: "duplicate remediation on scale"}
		}
		seen[r] = struct{}{}
	}

	if _, ok := p.severity(p.Fallback); !ok {
		return &PolicyError{Field: "fallback", Value: string(p.Fallback), Reason: "not a member of the priority scale"}
	}
	if _, ok := p.severity(p.Cap); !ok {
		return &PolicyError{Field: "cap", Value: string(p.Cap), Reason: "not a member of the priority scale"}
	}

	return nil
}

// severity returns r's position on the scale.
func (p Policy) severity(r Remediation) (int, bool) {
	for i, kind := range p.Scale {
		if kind == r {
			return i, true
		}
	}
	return 0, false
}

func (p Policy) clone() Policy {
	cloned := p
	cloned.Scale = make([]Remediation, len(p.Scale))
	copy(cloned.Scale, p.Scale)
	return cloned
}

// Merge collapses a decision set into the single remediation to apply: the
// most severe mapped scale entry, with off-scale types replaced by Fallback
// and the result clamped to Cap. An empty set yields Scale[0].
//
// Merge is a pure priority fold; decision timestamps never participate in
// ordering, so equal-severity decisions are interchangeable.
func (p Policy) Merge(decisions []Decision) Remediation {
	if len(decisions) == 0 {
		return p.Scale[0]
	}

	highest := 0
	for _, decision := range decisions {
		severity, ok := p.severity(Remediation(decision.Type))
		if !ok {
			severity, _ = p.severity(p.Fallback)
		}
		if severity > highest {
			highest = severity
		}
	}

	if capSeverity, _ := p.severity(p.Cap); highest > capSeverity {
		highest = capSeverity
	}

	return p.Scale[highest]
}

// Resolver computes the remediation for a client identifier by validating
// the identifier, fetching the decisions matching it and merging them under
// the configured policy.
//
// Resolver instances are safe for concurrent use.
type Resolver struct {
	config *config
	fetch  FetchDecisionsFunc
}

// NewResolver creates a Resolver around a decision fetcher.
func NewResolver(fetch FetchDecisionsFunc, opts ...Option) (*Resolver, error) {
	if fetch == nil {
		return nil, fmt.Errorf("decision fetcher cannot be nil")
	}

	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Resolver{config: cfg, fetch: fetch}, nil
}

// Policy returns the resolver's effective policy.
func (r *Resolver) Policy() Policy {
	return r.config.policy.clone()
}

// Resolve computes the remediation for identifier.
//
// A malformed identifier fails with an *InvalidAddressError before the
// fetcher is called. Fetch errors propagate unmodified; choosing fail-open
// versus fail-closed on transport failure is the caller's decision.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Remediation, error) {
	addr, err := ParseAddress(identifier)
	if err != nil {
		r.config.metrics.RecordSecurityEvent(securityEventInvalidIdentifier)
		return "", err
	}

	host := addr.Host().String()
	decisions, err := r.fetch(ctx, host)
	if err != nil {
		return "", err
	}

	remediation := r.config.policy.Merge(decisions)
	r.config.logger.DebugContext(ctx, "remediation resolved",
		"event", "remediation_resolved",
		"ip", host,
		"decisions", len(decisions),
		"remediation", string(remediation),
	)
	r.config.metrics.RecordRemediation(string(remediation))

	return remediation, nil
}
