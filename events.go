package bouncer

const (
	securityEventUntrustedForwarder = "untrusted_forwarder"
	securityEventMalformedForwarded = "malformed_forwarded_address"
	securityEventInvalidIdentifier  = "invalid_identifier"

	challengeEventIssued      = "challenge_issued"
	challengeEventSolved      = "challenge_solved"
	challengeEventRejected    = "challenge_rejected"
	challengeEventRegenerated = "challenge_regenerated"
)
