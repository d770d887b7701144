package bouncer

import (
	"net"
	"net/netip"
	"strings"
)

// Address is a parsed IPv4 or IPv6 host or CIDR range. Host addresses are
// represented as full-length prefixes (/32 or /128), so a single type covers
// both decision values and queried identifiers.
//
// Addresses are immutable values and safe to copy and compare.
type Address struct {
	prefix netip.Prefix
}

// ParseAddress parses a bare IPv4 or IPv6 address or a CIDR range in either
// family. IPv4-mapped IPv6 forms such as "::ffff:203.0.113.9" normalize to
// the embedded IPv4 address so they describe the same host as their dotted
// form.
//
// Returns an *InvalidAddressError wrapping ErrInvalidAddress when the input
// is neither a valid host address nor a valid CIDR.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Address{}, &InvalidAddressError{Input: s}
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		addr = normalizeIP(addr)
		return Address{prefix: netip.PrefixFrom(addr, addr.BitLen())}, nil
	}

	if prefix, err := netip.ParsePrefix(trimmed); err == nil {
		return Address{prefix: normalizePrefix(prefix)}, nil
	}

	return Address{}, &InvalidAddressError{Input: s}
}

// MustParseAddress is ParseAddress for static inputs. It panics on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err.Error())
	}
	return addr
}

// IsValid reports whether a holds a parsed address.
func (a Address) IsValid() bool {
	return a.prefix.IsValid()
}

// Is4 reports whether a belongs to the IPv4 family.
func (a Address) Is4() bool {
	return a.prefix.Addr().Is4()
}

// Bits returns the prefix length. Host addresses report their full bit
// length (32 or 128).
func (a Address) Bits() int {
	return a.prefix.Bits()
}

// Prefix returns the underlying network prefix.
func (a Address) Prefix() netip.Prefix {
	return a.prefix
}

// Host returns the range's first (or only) host address. Its textual form is
// the normalized key used for decision lookups and challenge-store entries.
func (a Address) Host() netip.Addr {
	return a.prefix.Addr()
}

// Contains reports whether candidate's host address falls within a's
// network. Addresses of different families never match; IPv4-mapped IPv6
// candidates are normalized at parse time and compare as IPv4.
func (a Address) Contains(candidate Address) bool {
	if !a.IsValid() || !candidate.IsValid() {
		return false
	}
	return a.prefix.Contains(candidate.Host())
}

// String renders the normalized textual form: bare address for hosts, CIDR
// notation for ranges.
func (a Address) String() string {
	if !a.IsValid() {
		return ""
	}
	if a.prefix.IsSingleIP() {
		return a.prefix.Addr().String()
	}
	return a.prefix.String()
}

// normalizePrefix masks a prefix to its network address and converts
// IPv4-mapped IPv6 prefixes to their IPv4 equivalent when the mask covers
// the embedded IPv4 bits.
func normalizePrefix(prefix netip.Prefix) netip.Prefix {
	addr := prefix.Addr()
	if addr.Is4In6() && prefix.Bits() >= 96 {
		prefix = netip.PrefixFrom(addr.Unmap(), prefix.Bits()-96)
	}
	return prefix.Masked()
}

// parseIP extracts a host address from the lenient formats seen in
// connection remote addresses and forwarding headers:
//
//   - Leading/trailing whitespace: "  192.168.1.1  "
//   - Port suffixes: "192.168.1.1:8080" or "[::1]:8080"
//   - Quoted values: "\"192.168.1.1\"" or "'192.168.1.1'"
//   - IPv6 brackets: "[::1]"
//
// These variations are stripped before netip.ParseAddr does the actual
// validation. Returns an invalid netip.Addr (IsValid() == false) if parsing
// fails.
func parseIP(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	s = trimMatchedChar(s, '"')
	s = trimMatchedChar(s, '\'')
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = trimMatchedPair(s, '[', ']')

	ip, _ := netip.ParseAddr(s)
	return ip
}

func normalizeIP(ip netip.Addr) netip.Addr {
	if ip.Is4In6() {
		return ip.Unmap()
	}
	return ip
}

// trimMatchedPair removes one leading and trailing delimiter when both match.
func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 {
		return s
	}

	if s[0] != start || s[len(s)-1] != end {
		return s
	}

	return s[1 : len(s)-1]
}

// trimMatchedChar removes one matching leading and trailing character.
func trimMatchedChar(s string, ch byte) string {
	return trimMatchedPair(s, ch, ch)
}
