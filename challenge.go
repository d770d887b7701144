package bouncer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// challengeShardCount is the number of independently locked shards in a
// ChallengeStore. Requests for distinct identifiers land on distinct shards
// with high probability, so transitions for one client never wait on
// another's.
const challengeShardCount = 32

// ChallengeStatus describes the challenge state for one identifier.
type ChallengeStatus int

const (
	// Start at 1 to avoid zero-value confusion.
	//
	// ChallengeAbsent means no active challenge exists for the identifier.
	ChallengeAbsent ChallengeStatus = iota + 1
	// ChallengePending means a challenge was issued and not yet solved.
	ChallengePending
	// ChallengeSolved means the challenge was solved and the client passes
	// without re-challenge until the resolution window elapses.
	ChallengeSolved
)

// String returns the canonical text representation of s.
func (s ChallengeStatus) String() string {
	switch s {
	case ChallengeAbsent:
		return "absent"
	case ChallengePending:
		return "pending"
	case ChallengeSolved:
		return "solved"
	default:
		return "unknown"
	}
}

// SubmitResult is the outcome of a challenge answer submission.
type SubmitResult int

const (
	// SubmitAccepted means the answer matched and the challenge is solved.
	SubmitAccepted SubmitResult = iota + 1
	// SubmitRejected means the answer did not match; the challenge stays
	// pending with the same secret.
	SubmitRejected
	// SubmitRegenerated means a refresh was requested; a new secret was
	// issued and any submitted answer was ignored.
	SubmitRegenerated
)

// String returns the canonical text representation of r.
func (r SubmitResult) String() string {
	switch r {
	case SubmitAccepted:
		return "accepted"
	case SubmitRejected:
		return "rejected"
	case SubmitRegenerated:
		return "regenerated"
	default:
		return "unknown"
	}
}

// challengeEntry is the per-identifier state. It is only ever touched with
// its shard's lock held.
type challengeEntry struct {
	secret   string
	issuedAt time.Time
	solved   bool
	solvedAt time.Time

	// deadline is the absolute expiry checked lazily on access; the timer
	// is the autonomous deletion for the same instant. gen invalidates a
	// fired timer that lost the race against a re-arm.
	deadline time.Time
	timer    *time.Timer
	gen      uint64
}

type challengeShard struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
}

// ChallengeStore is a time-bounded, per-identifier challenge state machine.
// Identifiers are resolved client address texts.
//
// Entries delete themselves when their window elapses: the generation window
// while pending, the resolution window once solved. Each transition re-arms
// a single deferred deletion per identifier, replacing any previous one, so
// timers never stack and table size never affects per-request latency.
//
// ChallengeStore is safe for concurrent use; transitions for the same
// identifier are serialized.
type ChallengeStore struct {
	shards [challengeShardCount]*challengeShard

	generationWindow time.Duration
	resolutionWindow time.Duration
	secretSource     SecretSource
	now              func() time.Time
	logger           Logger
	metrics          Metrics
}

// NewChallengeStore creates a ChallengeStore. Windows, secret source, clock,
// logger and metrics come from options; see WithGenerationWindow,
// WithResolutionWindow, WithSecretSource and WithClock.
func NewChallengeStore(opts ...Option) (*ChallengeStore, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return newChallengeStore(cfg), nil
}

func newChallengeStore(cfg *config) *ChallengeStore {
	store := &ChallengeStore{
		generationWindow: cfg.generationWindow,
		resolutionWindow: cfg.resolutionWindow,
		secretSource:     cfg.secretSource,
		now:              cfg.now,
		logger:           cfg.logger,
		metrics:          cfg.metrics,
	}
	for i := range store.shards {
		store.shards[i] = &challengeShard{entries: make(map[string]*challengeEntry)}
	}

	return store
}

// Ensure returns the active secret for id, issuing a fresh challenge when
// none exists. Repeated calls while a challenge is pending return the same
// secret. If the identifier is already solved, Ensure leaves the state
// untouched and returns the empty string; callers consult Status first.
func (s *ChallengeStore) Ensure(ctx context.Context, id string) (string, error) {
	shard := s.shardFor(id)
	now := s.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry := shard.live(id, now); entry != nil {
		if entry.solved {
			return "", nil
		}
		return entry.secret, nil
	}

	secret, err := s.secretSource()
	if err != nil {
		return "", fmt.Errorf("generate challenge secret: %w", err)
	}

	entry := &challengeEntry{
		secret:   secret,
		issuedAt: now,
		deadline: now.Add(s.generationWindow),
	}
	shard.entries[id] = entry
	s.armDeletion(shard, id, entry, s.generationWindow)

	s.logger.DebugContext(ctx, "challenge issued",
		"event", challengeEventIssued,
		"ip", id,
	)
	s.metrics.RecordChallengeEvent(challengeEventIssued)

	return secret, nil
}

// Status reports the current challenge state for id. Entries past their
// deadline report ChallengeAbsent even if the deletion timer has not fired
// yet.
func (s *ChallengeStore) Status(id string) ChallengeStatus {
	shard := s.shardFor(id)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry := shard.live(id, s.now())
	switch {
	case entry == nil:
		return ChallengeAbsent
	case entry.solved:
		return ChallengeSolved
	default:
		return ChallengePending
	}
}

// Submit processes a challenge response for id.
//
// With refresh set, the secret is regenerated unconditionally — the entry
// stays pending with a replaced deletion timer and any submitted answer is
// ignored. Otherwise an answer equal to the stored secret (exact,
// case-sensitive) transitions the entry to solved for the resolution
// window; anything else is rejected and the secret stays unchanged, with no
// attempt limit.
//
// Submitting against an absent entry is rejected. Submitting against an
// already solved entry is accepted, so a rapid double-submit of the correct
// answer cannot bounce the client back to the challenge.
func (s *ChallengeStore) Submit(ctx context.Context, id, answer string, refresh bool) (SubmitResult, error) {
	shard := s.shardFor(id)
	now := s.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if refresh {
		return s.regenerate(ctx, shard, id, now)
	}

	entry := shard.live(id, now)
	if entry == nil {
		s.metrics.RecordChallengeEvent(challengeEventRejected)
		return SubmitRejected, nil
	}
	if entry.solved {
		return SubmitAccepted, nil
	}

	if answer == entry.secret {
		entry.solved = true
		entry.solvedAt = now
		entry.deadline = now.Add(s.resolutionWindow)
		s.armDeletion(shard, id, entry, s.resolutionWindow)

		s.logger.InfoContext(ctx, "challenge solved",
			"event", challengeEventSolved,
			"ip", id,
		)
		s.metrics.RecordChallengeEvent(challengeEventSolved)
		return SubmitAccepted, nil
	}

	s.logger.InfoContext(ctx, "challenge answer rejected",
		"event", challengeEventRejected,
		"ip", id,
	)
	s.metrics.RecordChallengeEvent(challengeEventRejected)
	return SubmitRejected, nil
}

// regenerate issues a fresh secret for id, creating the entry when absent.
// Called with the shard lock held.
func (s *ChallengeStore) regenerate(ctx context.Context, shard *challengeShard, id string, now time.Time) (SubmitResult, error) {
	secret, err := s.secretSource()
	if err != nil {
		return 0, fmt.Errorf("generate challenge secret: %w", err)
	}

	entry := shard.live(id, now)
	if entry == nil {
		entry = &challengeEntry{}
		shard.entries[id] = entry
	}

	entry.secret = secret
	entry.issuedAt = now
	entry.solved = false
	entry.solvedAt = time.Time{}
	entry.deadline = now.Add(s.generationWindow)
	s.armDeletion(shard, id, entry, s.generationWindow)

	s.logger.DebugContext(ctx, "challenge regenerated",
		"event", challengeEventRegenerated,
		"ip", id,
	)
	s.metrics.RecordChallengeEvent(challengeEventRegenerated)
	return SubmitRegenerated, nil
}

// armDeletion replaces the entry's deferred deletion with one firing after
// window. Called with the shard lock held. The generation counter makes a
// timer that already fired before Stop harmless: by the time its callback
// acquires the lock, the entry's generation has moved on.
func (s *ChallengeStore) armDeletion(shard *challengeShard, id string, entry *challengeEntry, window time.Duration) {
	if entry.timer != nil {
		entry.timer.Stop()
	}

	entry.gen++
	gen := entry.gen
	entry.timer = time.AfterFunc(window, func() {
		shard.mu.Lock()
		defer shard.mu.Unlock()

		current, ok := shard.entries[id]
		if ok && current == entry && current.gen == gen {
			delete(shard.entries, id)
		}
	})
}

// live returns the entry for id, or nil when absent or past its deadline.
// Expired entries are removed inline. Called with the shard lock held.
func (shard *challengeShard) live(id string, now time.Time) *challengeEntry {
	entry, ok := shard.entries[id]
	if !ok {
		return nil
	}

	if !now.Before(entry.deadline) {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(shard.entries, id)
		return nil
	}

	return entry
}

func (s *ChallengeStore) shardFor(id string) *challengeShard {
	return s.shards[fnv32a(id)%challengeShardCount]
}

// fnv32a is the 32-bit FNV-1a hash, inlined to keep shard selection
// allocation-free.
func fnv32a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	hash := uint32(offset32)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}
