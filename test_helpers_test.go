package bouncer

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"
)

// captureLogger records log events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []capturedLogEvent
}

type capturedLogEvent struct {
	Level string
	Msg   string
	Attrs map[string]any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{}
}

func (l *captureLogger) record(level, msg string, args []any) {
	attrs := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs[key] = args[i+1]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, capturedLogEvent{Level: level, Msg: msg, Attrs: attrs})
}

func (l *captureLogger) DebugContext(_ context.Context, msg string, args ...any) {
	l.record("debug", msg, args)
}

func (l *captureLogger) InfoContext(_ context.Context, msg string, args ...any) {
	l.record("info", msg, args)
}

func (l *captureLogger) WarnContext(_ context.Context, msg string, args ...any) {
	l.record("warn", msg, args)
}

func (l *captureLogger) eventCount(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, e := range l.events {
		if e.Attrs["event"] == event {
			count++
		}
	}
	return count
}

// captureMetrics counts metric callbacks for assertions.
type captureMetrics struct {
	mu         sync.Mutex
	remediated map[string]int
	challenges map[string]int
	security   map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{
		remediated: make(map[string]int),
		challenges: make(map[string]int),
		security:   make(map[string]int),
	}
}

func (m *captureMetrics) RecordRemediation(remediation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remediated[remediation]++
}

func (m *captureMetrics) RecordChallengeEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[event]++
}

func (m *captureMetrics) RecordSecurityEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.security[event]++
}

func (m *captureMetrics) challengeCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.challenges[event]
}

func (m *captureMetrics) securityCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.security[event]
}

func (m *captureMetrics) remediationCount(remediation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remediated[remediation]
}

// fakeClock is an adjustable time source for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceSecrets returns a SecretSource yielding s1, s2, ... cyclically.
func sequenceSecrets(secrets ...string) SecretSource {
	var mu sync.Mutex
	index := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		secret := secrets[index%len(secrets)]
		index++
		return secret, nil
	}
}

func mustNewChallengeStore(t *testing.T, opts ...Option) *ChallengeStore {
	t.Helper()

	store, err := NewChallengeStore(opts...)
	if err != nil {
		t.Fatalf("NewChallengeStore() error = %v", err)
	}

	return store
}

func mustNewResolver(t *testing.T, fetch FetchDecisionsFunc, opts ...Option) *Resolver {
	t.Helper()

	resolver, err := NewResolver(fetch, opts...)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	return resolver
}

func mustNewClientAddressResolver(t *testing.T, opts ...Option) *ClientAddressResolver {
	t.Helper()

	resolver, err := NewClientAddressResolver(opts...)
	if err != nil {
		t.Fatalf("NewClientAddressResolver() error = %v", err)
	}

	return resolver
}

func mustParseCIDRs(t *testing.T, cidrs ...string) []netip.Prefix {
	t.Helper()

	prefixes, err := ParseCIDRs(cidrs...)
	if err != nil {
		t.Fatalf("ParseCIDRs() error = %v", err)
	}

	return prefixes
}
