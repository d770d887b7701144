package bouncer

import (
	"context"
	"fmt"
	"strings"
)

// typicalChainCapacity is the initial capacity used when splitting
// forwarding headers.
//
// Most deployments have short chains (around 1-5 hops). Preallocating 8
// avoids reallocations in common cases without meaningful memory overhead.
const typicalChainCapacity = 8

// ClientAddressResolver derives the address to treat as "the client" from a
// raw connection address and an optional X-Forwarded-For header.
//
// The header is honored only when the connection address itself falls inside
// a configured trusted forwarder range; otherwise anything a client writes
// into the header is ignored. With no ranges configured, the header is never
// honored.
//
// Resolver instances are safe for concurrent use.
type ClientAddressResolver struct {
	config *config
}

// NewClientAddressResolver creates a ClientAddressResolver. Trusted ranges
// come from TrustForwardingPrefixes and the trust helper options.
func NewClientAddressResolver(opts ...Option) (*ClientAddressResolver, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &ClientAddressResolver{config: cfg}, nil
}

// ResolveClientAddress returns the effective client address for a request.
//
// Absent header: the remote address is returned unchanged. Untrusted remote:
// the header is ignored with a security warning. Trusted remote: the header
// is split on commas, trimmed and deduplicated preserving first-seen order,
// and the last entry is returned — a trusted proxy chain appends its own
// view of the client, so the last value is the one no earlier hop could
// spoof.
//
// Failures never abort the request: a malformed forwarded value degrades to
// the raw remote address and is logged.
func (r *ClientAddressResolver) ResolveClientAddress(ctx context.Context, remoteAddr, forwardedFor string) string {
	if forwardedFor == "" {
		return remoteAddr
	}

	remoteIP := parseIP(remoteAddr)
	if !r.config.forwarderMatch.contains(remoteIP) {
		r.config.metrics.RecordSecurityEvent(securityEventUntrustedForwarder)
		r.config.logger.WarnContext(ctx, "forwarding header from untrusted sender ignored",
			"event", securityEventUntrustedForwarder,
			"remote_addr", remoteAddr,
			"forwarded_for", forwardedFor,
		)
		return remoteAddr
	}

	values := splitUniqueForwardedValues(forwardedFor)
	if len(values) == 0 {
		r.config.metrics.RecordSecurityEvent(securityEventMalformedForwarded)
		r.config.logger.WarnContext(ctx, "forwarding header carries no usable value",
			"event", securityEventMalformedForwarded,
			"remote_addr", remoteAddr,
			"forwarded_for", forwardedFor,
		)
		return remoteAddr
	}

	candidate := values[len(values)-1]
	if _, err := ParseAddress(candidate); err != nil {
		r.config.metrics.RecordSecurityEvent(securityEventMalformedForwarded)
		r.config.logger.WarnContext(ctx, "malformed forwarded client address",
			"event", securityEventMalformedForwarded,
			"remote_addr", remoteAddr,
			"forwarded_for", forwardedFor,
			"candidate", candidate,
		)
		return remoteAddr
	}

	r.config.logger.DebugContext(ctx, "client address resolved behind trusted forwarder",
		"event", "forwarded_client_resolved",
		"remote_addr", remoteAddr,
		"client", candidate,
	)

	return candidate
}

// splitUniqueForwardedValues splits a comma-separated header value, trims
// whitespace, drops empties and deduplicates while preserving first-seen
// order.
func splitUniqueForwardedValues(header string) []string {
	seen := make(map[string]struct{}, typicalChainCapacity)
	values := make([]string, 0, typicalChainCapacity)

	for _, part := range strings.Split(header, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		values = append(values, trimmed)
	}

	return values
}
