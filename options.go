package bouncer

import (
	"fmt"
	"net/netip"
	"time"
)

// WithPolicy sets the remediation policy (scale, fallback, cap).
//
// The policy is validated when the component is constructed.
func WithPolicy(policy Policy) Option {
	policy = policy.clone()

	return func(c *config) error {
		c.policy = policy
		return nil
	}
}

// TrustForwardingPrefixes adds trusted forwarder network prefixes. Only
// requests arriving from these ranges may designate a different client
// address through X-Forwarded-For.
func TrustForwardingPrefixes(prefixes ...netip.Prefix) Option {
	prefixes = clonePrefixes(prefixes)

	return func(c *config) error {
		normalized, err := normalizeForwarderPrefixes(prefixes)
		if err != nil {
			return err
		}

		appendTrustedForwarderCIDRs(c, normalized...)
		return nil
	}
}

// TrustForwardingAddrs adds trusted forwarder host addresses.
func TrustForwardingAddrs(addrs ...netip.Addr) Option {
	addrs = cloneAddrs(addrs)

	return func(c *config) error {
		prefixes := make([]netip.Prefix, 0, len(addrs))
		for _, addr := range addrs {
			if !addr.IsValid() {
				return fmt.Errorf("invalid forwarder address %q", addr)
			}

			addr = normalizeIP(addr)
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}

		appendTrustedForwarderCIDRs(c, prefixes...)
		return nil
	}
}

// TrustLoopbackForwarder adds loopback CIDRs to the trusted forwarder
// ranges.
func TrustLoopbackForwarder() Option {
	return func(c *config) error {
		appendTrustedForwarderCIDRs(c, loopbackForwarderCIDRs...)
		return nil
	}
}

// TrustPrivateForwarderRanges adds private network CIDRs to the trusted
// forwarder ranges.
func TrustPrivateForwarderRanges() Option {
	return func(c *config) error {
		appendTrustedForwarderCIDRs(c, privateForwarderCIDRs...)
		return nil
	}
}

// WithGenerationWindow sets how long a pending challenge survives without a
// correct answer.
func WithGenerationWindow(window time.Duration) Option {
	return func(c *config) error {
		c.generationWindow = window
		return nil
	}
}

// WithResolutionWindow sets the grace period granted after a challenge is
// solved.
func WithResolutionWindow(window time.Duration) Option {
	return func(c *config) error {
		c.resolutionWindow = window
		return nil
	}
}

// WithSecretSource sets the challenge secret generator.
func WithSecretSource(source SecretSource) Option {
	return func(c *config) error {
		if source == nil {
			return fmt.Errorf("secret source cannot be nil")
		}

		c.secretSource = source
		return nil
	}
}

// WithClock sets the time source used for challenge deadlines. Intended for
// tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}

		c.now = now
		return nil
	}
}

// WithFailureMode sets whether the enforcement middleware fails open or
// closed when the remediation cannot be resolved.
func WithFailureMode(mode FailureMode) Option {
	return func(c *config) error {
		c.failureMode = mode
		return nil
	}
}

// WithWallRenderer sets the renderer used for ban and challenge pages.
func WithWallRenderer(renderer WallRenderer) Option {
	return func(c *config) error {
		c.renderer = renderer
		return nil
	}
}

// WithLogger sets the logger implementation used for engine events.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) error {
		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked only after option validation succeeds, so a
// failing configuration never registers collectors.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
