package charmlog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	charm "github.com/charmbracelet/log"
	"github.com/ipsentry/bouncer"
)

func TestLoggerForwardsToCharm(t *testing.T) {
	var buf bytes.Buffer
	backing := charm.New(&buf)
	backing.SetLevel(charm.DebugLevel)

	logger := New(backing)
	ctx := context.Background()

	logger.DebugContext(ctx, "debug message", "ip", "203.0.113.9")
	logger.InfoContext(ctx, "info message", "event", "challenge_solved")
	logger.WarnContext(ctx, "warn message")

	out := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "203.0.113.9", "challenge_solved"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewNilFallsBack(t *testing.T) {
	logger := New(nil)

	// Must not panic with the default charm logger.
	logger.InfoContext(context.Background(), "still works")
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	backing := charm.New(&buf)
	backing.SetLevel(charm.DebugLevel)

	fetch := func(_ context.Context, ip string) ([]bouncer.Decision, error) { return nil, nil }
	resolver, err := bouncer.NewResolver(fetch, WithLogger(backing))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if _, err := resolver.Resolve(context.Background(), "203.0.113.9"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if !strings.Contains(buf.String(), "remediation resolved") {
		t.Errorf("log output missing resolution trace:\n%s", buf.String())
	}
}
