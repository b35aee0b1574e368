// Package breaker guards external collaborators (the quest generator API
// and push gateways) with a circuit breaker so a failing upstream is
// skipped for a cooldown instead of being hit on every sweep item.
//
// States:
//   - CLOSED    calls pass; Threshold consecutive failures open it
//   - OPEN      calls fail fast with ErrOpen until Cooldown elapses
//   - HALF_OPEN calls probe; Probes successes close it, any failure reopens
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ErrOpen is returned while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// State is a breaker state.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config tunes a Breaker.
type Config struct {
	Threshold int           // consecutive failures that open the breaker (default 5)
	Cooldown  time.Duration // time spent OPEN before probing (default 30s)
	Probes    int           // HALF_OPEN successes needed to close (default 2)
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	trips     int
}

// New creates a closed breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now, state: Closed}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// allow reports whether a call may proceed. Caller holds mu.
func (b *Breaker) allow() bool {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = HalfOpen
		b.successes = 0
		log.Printf("[breaker] %s half-open, probing", b.name)
	}
	return b.state != Open
}

// Allow returns ErrOpen (wrapped with the name) while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.allow() {
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.state = Closed
			b.failures = 0
			log.Printf("[breaker] %s closed", b.name)
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records a failed call and may open the breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		b.failures++
		if b.failures < b.cfg.Threshold {
			return
		}
	case Open:
		return
	}
	b.state = Open
	b.openedAt = b.now()
	b.trips++
	log.Printf("[breaker] %s open for %s", b.name, b.cfg.Cooldown)
}

// Do runs fn unless the breaker is open, recording its outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	Trips    int       `json:"trips"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

// Snapshot returns the current state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allow()
	return Snapshot{Name: b.name, State: b.state, Failures: b.failures, Trips: b.trips, OpenedAt: b.openedAt}
}

// ─── Guarded Collaborators ──────────────────────────────────────────────────

// Generator guards a quest generator. While open, Generate fails fast so
// a generator.Fallback moves straight to its secondary.
type Generator struct {
	Next    domain.QuestGenerator
	Breaker *Breaker
}

var _ domain.QuestGenerator = (*Generator)(nil)

// Generate calls Next through the breaker.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.QuestTemplate, error) {
	var tmpl domain.QuestTemplate
	err := g.Breaker.Do(func() error {
		var err error
		tmpl, err = g.Next.Generate(ctx, req)
		return err
	})
	return tmpl, err
}

// Gateway guards a push gateway. While open, sends are reported failed
// without reaching the upstream.
type Gateway struct {
	Next    domain.PushGateway
	Breaker *Breaker
}

var _ domain.PushGateway = (*Gateway)(nil)

// Name returns the guarded gateway's name.
func (g *Gateway) Name() string { return g.Next.Name() }

// Send calls Next through the breaker. A ticket-level rejection (bad
// token) is the device's fault and does not count against the upstream.
func (g *Gateway) Send(ctx context.Context, msg domain.PushMessage) domain.PushResult {
	if err := g.Breaker.Allow(); err != nil {
		return domain.PushResult{Error: err.Error()}
	}
	res := g.Next.Send(ctx, msg)
	if res.Success || !res.Transport {
		g.Breaker.Success()
	} else {
		g.Breaker.Failure()
	}
	return res
}
