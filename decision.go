package bouncer

import (
	"context"
	"time"
)

// Decision is one remediation instruction received from the decision
// service. Decisions are immutable once received; a resolution call borrows
// the slice for its duration only and never retains it.
type Decision struct {
	// Type is the remediation kind requested by the service, for example
	// "ban" or "captcha". Types absent from the configured scale map to the
	// policy's fallback remediation.
	Type string

	// Value is the IP or CIDR range the decision targets, as text.
	Value string

	// Duration is the raw signed duration string from the service, for
	// example "3h59m59.47s" or "-1m30s".
	Duration string

	// Expiration is the absolute expiry derived from Duration at receive
	// time. Expiry enforcement is the fetch collaborator's concern; an
	// expired decision reaching the resolver still counts.
	Expiration time.Time
}

// FetchDecisionsFunc fetches the decisions matching a single normalized host
// address. Implementations own their transport, authentication and timeout
// concerns; errors propagate to the Resolve caller unmodified.
type FetchDecisionsFunc func(ctx context.Context, ip string) ([]Decision, error)
