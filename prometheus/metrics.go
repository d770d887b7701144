package prometheus

import (
	"errors"
	"fmt"

	"github.com/ipsentry/bouncer"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a Prometheus-backed implementation of
// bouncer.Metrics.
type PrometheusMetrics struct {
	remediations    *prom.CounterVec
	challengeEvents *prom.CounterVec
	securityEvents  *prom.CounterVec
}

// WithMetrics returns a bouncer option that installs Prometheus-backed
// metrics using prom.DefaultRegisterer.
func WithMetrics() bouncer.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns a bouncer option that installs Prometheus-backed
// metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) bouncer.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

// withMetricsFactory adapts a PrometheusMetrics constructor into a
// bouncer.Option, deferring registration until option validation succeeds.
func withMetricsFactory(factory func() (*PrometheusMetrics, error)) bouncer.Option {
	return bouncer.WithMetricsFactory(func() (bouncer.Metrics, error) {
		return factory()
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors
// on the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	remediationsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: "bouncer_remediations_total",
			Help: "Remediations applied to requests, labeled by remediation kind (bypass, captcha, ban, ...).",
		},
		[]string{"remediation"},
	)
	challengeEventsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: "bouncer_challenge_events_total",
			Help: "Captcha challenge lifecycle events (challenge_issued, challenge_solved, challenge_rejected, challenge_regenerated).",
		},
		[]string{"event"},
	)
	securityEventsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: "bouncer_security_events_total",
			Help: "Security-related events observed while resolving client addresses and remediations, labeled by event.",
		},
		[]string{"event"},
	)

	remediations, err := registerCounterVec(registerer, remediationsCollector, "bouncer_remediations_total")
	if err != nil {
		return nil, err
	}

	challengeEvents, err := registerCounterVec(registerer, challengeEventsCollector, "bouncer_challenge_events_total")
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCounterVec(registerer, securityEventsCollector, "bouncer_security_events_total")
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		remediations:    remediations,
		challengeEvents: challengeEvents,
		securityEvents:  securityEvents,
	}, nil
}

func registerCounterVec(registerer prom.Registerer, collector *prom.CounterVec, metricName string) (*prom.CounterVec, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prom.CounterVec)
			if ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		return nil, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordRemediation increments bouncer_remediations_total for the computed
// remediation kind.
func (m *PrometheusMetrics) RecordRemediation(remediation string) {
	m.remediations.WithLabelValues(remediation).Inc()
}

// RecordChallengeEvent increments bouncer_challenge_events_total for the
// provided event label.
func (m *PrometheusMetrics) RecordChallengeEvent(event string) {
	m.challengeEvents.WithLabelValues(event).Inc()
}

// RecordSecurityEvent increments bouncer_security_events_total for the
// provided event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
