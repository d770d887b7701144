package bouncer

import (
	"fmt"
	"net/netip"
	"reflect"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultGenerationWindow bounds how long an unanswered challenge stays
	// pending before its entry deletes itself.
	DefaultGenerationWindow = 15 * time.Minute

	// DefaultResolutionWindow is the grace period a solved challenge grants
	// before the client is challenged again.
	DefaultResolutionWindow = 30 * time.Minute
)

// SecretSource generates challenge secrets. The format is unconstrained;
// answers are compared by exact string equality.
type SecretSource func() (string, error)

// defaultSecretSource issues UUID secrets when no generator is configured.
// Hosts pairing the store with a visual captcha inject the captcha text
// instead.
func defaultSecretSource() (string, error) {
	return uuid.NewString(), nil
}

// FailureMode controls how the enforcement middleware reacts when the
// remediation cannot be resolved (for example, the decision service is
// unreachable).
type FailureMode int

const (
	// Start at 1 to avoid zero-value confusion.
	//
	// FailureModeOpen lets the request through on resolution errors.
	FailureModeOpen FailureMode = iota + 1
	// FailureModeClosed blocks the request on resolution errors.
	FailureModeClosed
)

// String returns the canonical text representation of m.
func (m FailureMode) String() string {
	switch m {
	case FailureModeOpen:
		return "open"
	case FailureModeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// valid reports whether m is a supported failure mode.
func (m FailureMode) valid() bool {
	return m == FailureModeOpen || m == FailureModeClosed
}

// Option configures an engine component.
//
// Construct options using package-provided option builder functions. The
// same option set serves every constructor; each component reads the fields
// relevant to it.
type Option func(*config) error

// config holds component configuration state.
//
// It is mutated by Option functions during construction.
type config struct {
	policy Policy

	trustedForwarderCIDRs []netip.Prefix
	forwarderMatch        forwarderMatcher

	generationWindow time.Duration
	resolutionWindow time.Duration
	secretSource     SecretSource
	now              func() time.Time

	failureMode FailureMode
	renderer    WallRenderer

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

var (
	// loopbackForwarderCIDRs contains loopback networks used when the app
	// sits behind a reverse proxy running on the same host.
	loopbackForwarderCIDRs = []netip.Prefix{
		mustParsePrefix("127.0.0.0/8"),
		mustParsePrefix("::1/128"),
	}

	// privateForwarderCIDRs contains private-network ranges commonly used
	// for trusted upstream proxies in VM and internal network deployments.
	privateForwarderCIDRs = []netip.Prefix{
		mustParsePrefix("10.0.0.0/8"),
		mustParsePrefix("172.16.0.0/12"),
		mustParsePrefix("192.168.0.0/16"),
		mustParsePrefix("fc00::/7"),
	}
)

func mustParsePrefix(cidr string) netip.Prefix {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in CIDR %q: %v", cidr, err))
	}
	return prefix
}

func clonePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	if prefixes == nil {
		return nil
	}
	cloned := make([]netip.Prefix, len(prefixes))
	copy(cloned, prefixes)
	return cloned
}

func cloneAddrs(addrs []netip.Addr) []netip.Addr {
	if addrs == nil {
		return nil
	}
	cloned := make([]netip.Addr, len(addrs))
	copy(cloned, addrs)
	return cloned
}

func normalizeForwarderPrefixes(prefixes []netip.Prefix) ([]netip.Prefix, error) {
	normalized := make([]netip.Prefix, 0, len(prefixes))
	for _, prefix := range prefixes {
		if !prefix.IsValid() {
			return nil, fmt.Errorf("invalid trusted forwarder prefix %q", prefix)
		}
		normalized = append(normalized, prefix.Masked())
	}

	return normalized, nil
}

func mergeUniquePrefixes(existing []netip.Prefix, additions ...netip.Prefix) []netip.Prefix {
	if len(existing) == 0 && len(additions) == 0 {
		return nil
	}

	merged := make([]netip.Prefix, 0, len(existing)+len(additions))
	seen := make(map[netip.Prefix]struct{}, len(existing)+len(additions))

	for _, prefix := range existing {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	for _, prefix := range additions {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	return merged
}

func appendTrustedForwarderCIDRs(c *config, prefixes ...netip.Prefix) {
	if len(prefixes) == 0 {
		return
	}

	c.trustedForwarderCIDRs = mergeUniquePrefixes(c.trustedForwarderCIDRs, prefixes...)
}

func defaultConfig() *config {
	return &config{
		policy:           DefaultPolicy(),
		generationWindow: DefaultGenerationWindow,
		resolutionWindow: DefaultResolutionWindow,
		secretSource:     defaultSecretSource,
		now:              time.Now,
		failureMode:      FailureModeOpen,
		renderer:         defaultWallRenderer{},
		logger:           noopLogger{},
		metrics:          noopMetrics{},
	}
}

func applyOptions(c *config, opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func configFromOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	cfg.forwarderMatch = buildForwarderMatcher(cfg.trustedForwarderCIDRs)

	if cfg.useMetricsFactory && cfg.metricsFactory == nil {
		return nil, fmt.Errorf("metrics factory cannot be nil")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.useMetricsFactory {
		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		if isNilMetrics(metrics) {
			return nil, fmt.Errorf("metrics factory returned nil metrics")
		}
		cfg.metrics = metrics
	}

	return cfg, nil
}

func (c *config) validate() error {
	if err := c.policy.Validate(); err != nil {
		return err
	}
	if c.generationWindow <= 0 {
		return fmt.Errorf("generation window must be > 0, got %v", c.generationWindow)
	}
	if c.resolutionWindow <= 0 {
		return fmt.Errorf("resolution window must be > 0, got %v", c.resolutionWindow)
	}
	if c.secretSource == nil {
		return fmt.Errorf("secret source cannot be nil")
	}
	if c.now == nil {
		return fmt.Errorf("clock cannot be nil")
	}
	if !c.failureMode.valid() {
		return fmt.Errorf("invalid failure mode %d (must be FailureModeOpen=1 or FailureModeClosed=2)", c.failureMode)
	}
	if isNilInterface(c.renderer) {
		return fmt.Errorf("wall renderer cannot be nil")
	}
	if isNilLogger(c.logger) {
		return fmt.Errorf("logger cannot be nil")
	}
	if isNilMetrics(c.metrics) {
		return fmt.Errorf("metrics cannot be nil")
	}
	return nil
}

func isNilLogger(logger Logger) bool {
	return isNilInterface(logger)
}

func isNilMetrics(metrics Metrics) bool {
	return isNilInterface(metrics)
}

func isNilInterface(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
