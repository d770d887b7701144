package bouncer

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrInvalidAddress = errors.New("invalid IP or CIDR")

	ErrMisconfiguredPolicy = errors.New("misconfigured remediation policy")
)

// InvalidAddressError reports a textual address that could not be parsed as
// an IPv4/IPv6 host or CIDR range.
type InvalidAddressError struct {
	Input string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid IP or CIDR %q", e.Input)
}

func (e *InvalidAddressError) Unwrap() error {
	return ErrInvalidAddress
}

// PolicyError reports a remediation policy that fails validation, for example
// a fallback or cap remediation that is not a member of the priority scale.
type PolicyError struct {
	Field  string
	Value  string
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("policy %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("policy %s: %s", e.Field, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrMisconfiguredPolicy
}

// ParseCIDRs parses CIDR strings into prefixes, typically for trusted
// forwarder configuration.
func ParseCIDRs(cidrs ...string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
