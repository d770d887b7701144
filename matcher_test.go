package bouncer

import (
	"net/netip"
	"testing"
)

func TestForwarderMatcherContains(t *testing.T) {
	tests := []struct {
		name      string
		prefixes  []string
		candidate string
		want      bool
	}{
		{
			name:      "member of ipv4 range",
			prefixes:  []string{"10.0.0.0/8"},
			candidate: "10.255.255.255",
			want:      true,
		},
		{
			name:      "outside ipv4 range",
			prefixes:  []string{"10.0.0.0/8"},
			candidate: "11.0.0.0",
			want:      false,
		},
		{
			name:      "exact host prefix",
			prefixes:  []string{"192.168.1.1/32"},
			candidate: "192.168.1.1",
			want:      true,
		},
		{
			name:      "host prefix excludes neighbor",
			prefixes:  []string{"192.168.1.1/32"},
			candidate: "192.168.1.2",
			want:      false,
		},
		{
			name:      "most specific of overlapping ranges",
			prefixes:  []string{"10.0.0.0/8", "10.1.0.0/16"},
			candidate: "10.1.2.3",
			want:      true,
		},
		{
			name:      "member of ipv6 range",
			prefixes:  []string{"2001:db8::/32"},
			candidate: "2001:db8:1::1",
			want:      true,
		},
		{
			name:      "outside ipv6 range",
			prefixes:  []string{"2001:db8::/32"},
			candidate: "2001:db9::1",
			want:      false,
		},
		{
			name:      "ipv4 candidate never matches ipv6 range",
			prefixes:  []string{"2001:db8::/32"},
			candidate: "10.0.0.1",
			want:      false,
		},
		{
			name:      "mapped candidate matches ipv4 range",
			prefixes:  []string{"10.0.0.0/8"},
			candidate: "::ffff:10.0.0.1",
			want:      true,
		},
		{
			name:      "mapped prefix matches ipv4 candidate",
			prefixes:  []string{"::ffff:10.0.0.0/104"},
			candidate: "10.0.0.1",
			want:      true,
		},
		{
			name:      "zero-length ipv4 prefix matches everything v4",
			prefixes:  []string{"0.0.0.0/0"},
			candidate: "198.51.100.7",
			want:      true,
		},
		{
			name:      "zero-length ipv4 prefix does not match v6",
			prefixes:  []string{"0.0.0.0/0"},
			candidate: "2001:db8::1",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := buildForwarderMatcher(mustParseCIDRs(t, tt.prefixes...))

			candidate := netip.MustParseAddr(tt.candidate)
			if got := matcher.contains(candidate); got != tt.want {
				t.Errorf("contains(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestForwarderMatcherEmpty(t *testing.T) {
	matcher := buildForwarderMatcher(nil)

	if matcher.contains(netip.MustParseAddr("10.0.0.1")) {
		t.Error("matcher with no prefixes should match nothing")
	}
}

func TestForwarderMatcherInvalidCandidate(t *testing.T) {
	matcher := buildForwarderMatcher(mustParseCIDRs(t, "0.0.0.0/0", "::/0"))

	if matcher.contains(netip.Addr{}) {
		t.Error("invalid candidate should never match")
	}
}
