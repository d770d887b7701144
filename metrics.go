package bouncer

// Metrics records remediation outcomes, challenge lifecycle events and
// security events emitted by the engine.
//
// Implementations should be safe for concurrent use, as engine components
// are typically shared across many goroutines.
type Metrics interface {
	// RecordRemediation is called once per successful resolution with the
	// remediation kind that was computed.
	RecordRemediation(remediation string)
	// RecordChallengeEvent is called on challenge issuance, resolution,
	// rejection and regeneration.
	RecordChallengeEvent(event string)
	// RecordSecurityEvent is called when the engine observes a
	// security-relevant condition.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordRemediation(string) {}

func (noopMetrics) RecordChallengeEvent(string) {}

func (noopMetrics) RecordSecurityEvent(string) {}
