package bouncer

import (
	"fmt"
	"time"
)

// ParseExpiration converts a decision's raw duration into an absolute expiry
// relative to now. The decision service emits Go duration syntax
// ("3h59m59.47s", "150ms", optional leading "-"), so time.ParseDuration is
// the authoritative grammar; negative durations yield an expiry in the past.
func ParseExpiration(raw string, now time.Time) (time.Time, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse decision duration %q: %w", raw, err)
	}
	return now.Add(d), nil
}
