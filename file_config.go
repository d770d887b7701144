package bouncer

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of a bouncer configuration file:
//
//	api:
//	  url: http://localhost:8080
//	  key: "<api key>"
//	  timeout: 2s
//	policy:
//	  scale: [bypass, captcha, ban]
//	  fallback: ban
//	  cap: ban
//	trustedForwarders:
//	  - 10.0.0.0/8
//	  - 192.168.1.1
//	challenge:
//	  generationWindow: 15m
//	  resolutionWindow: 30m
//	failureMode: open
//
// The api section configures the decision-service client (see the lapi
// subpackage); Options covers everything else.
type FileConfig struct {
	API APIConfig `yaml:"api"`

	Policy struct {
		Scale    []string `yaml:"scale"`
		Fallback string   `yaml:"fallback"`
		Cap      string   `yaml:"cap"`
	} `yaml:"policy"`

	// TrustedForwarders lists CIDR ranges or host addresses whose
	// X-Forwarded-For header is honored.
	TrustedForwarders []string `yaml:"trustedForwarders"`

	Challenge struct {
		GenerationWindow string `yaml:"generationWindow"`
		ResolutionWindow string `yaml:"resolutionWindow"`
	} `yaml:"challenge"`

	// FailureMode is "open" or "closed"; empty means open.
	FailureMode string `yaml:"failureMode"`
}

// APIConfig carries decision-service connection settings.
type APIConfig struct {
	URL       string `yaml:"url"`
	Key       string `yaml:"key"`
	UserAgent string `yaml:"userAgent"`
	Timeout   string `yaml:"timeout"`
}

// LoadConfigFile reads and parses a YAML configuration file.
func LoadConfigFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfigFile(data)
}

// ParseConfigFile parses YAML configuration bytes.
func ParseConfigFile(data []byte) (FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// Options converts the file configuration into engine options. Omitted
// sections keep their defaults.
func (fc FileConfig) Options() ([]Option, error) {
	var opts []Option

	if len(fc.Policy.Scale) > 0 || fc.Policy.Fallback != "" || fc.Policy.Cap != "" {
		policy := DefaultPolicy()
		if len(fc.Policy.Scale) > 0 {
			policy.Scale = make([]Remediation, len(fc.Policy.Scale))
			for i, kind := range fc.Policy.Scale {
				policy.Scale[i] = Remediation(kind)
			}
		}
		if fc.Policy.Fallback != "" {
			policy.Fallback = Remediation(fc.Policy.Fallback)
		}
		if fc.Policy.Cap != "" {
			policy.Cap = Remediation(fc.Policy.Cap)
		}
		opts = append(opts, WithPolicy(policy))
	}

	if len(fc.TrustedForwarders) > 0 {
		prefixes := make([]netip.Prefix, 0, len(fc.TrustedForwarders))
		for _, entry := range fc.TrustedForwarders {
			addr, err := ParseAddress(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted forwarder %q: %w", entry, err)
			}
			prefixes = append(prefixes, addr.Prefix())
		}
		opts = append(opts, TrustForwardingPrefixes(prefixes...))
	}

	if fc.Challenge.GenerationWindow != "" {
		window, err := time.ParseDuration(fc.Challenge.GenerationWindow)
		if err != nil {
			return nil, fmt.Errorf("challenge generation window: %w", err)
		}
		opts = append(opts, WithGenerationWindow(window))
	}
	if fc.Challenge.ResolutionWindow != "" {
		window, err := time.ParseDuration(fc.Challenge.ResolutionWindow)
		if err != nil {
			return nil, fmt.Errorf("challenge resolution window: %w", err)
		}
		opts = append(opts, WithResolutionWindow(window))
	}

	switch fc.FailureMode {
	case "":
	case "open":
		opts = append(opts, WithFailureMode(FailureModeOpen))
	case "closed":
		opts = append(opts, WithFailureMode(FailureModeClosed))
	default:
		return nil, fmt.Errorf("invalid failure mode %q (must be \"open\" or \"closed\")", fc.FailureMode)
	}

	return opts, nil
}
