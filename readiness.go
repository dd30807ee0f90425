package dispatch

import (
	"context"
	"slices"
	"sync"
	"time"
)

const (
	// DefaultQuiescence is how long no guild snapshot may arrive before a
	// session counts as ready.
	DefaultQuiescence = 2 * time.Second

	// DefaultHandshakeMargin is subtracted from the handshake time on
	// single-shard sessions, which never see a second handshake.
	DefaultHandshakeMargin = 1500 * time.Millisecond
)

// ReadinessState is the position of a Readiness in its lifecycle.
type ReadinessState uint8

const (
	StateAccumulating ReadinessState = iota
	StateQuiescing
	StateReady
)

func (s ReadinessState) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateQuiescing:
		return "quiescing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Readiness tracks the burst of guild snapshots that follows a handshake
// and decides when startup is complete.
//
// The expected snapshot count alone is not trusted: under sharding the
// total is not known atomically, so readiness also requires the snapshot
// stream to go quiet for the quiescence window.
type Readiness struct {
	mu sync.Mutex

	window      time.Duration
	margin      time.Duration
	singleShard bool
	now         func() time.Time

	state         ReadinessState
	pending       int
	large         []string
	lastEvent     time.Time
	lastHandshake time.Time
	deadline      time.Time

	changed chan struct{}
	done    chan struct{}
}

func newReadiness(window, margin time.Duration, singleShard bool) *Readiness {
	return &Readiness{
		window:      window,
		margin:      margin,
		singleShard: singleShard,
		now:         time.Now,
		changed:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// OnHandshake records a handshake announcing expected guild snapshots.
// Additional handshakes (further shards) add to the pending count.
func (r *Readiness) OnHandshake(expected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady {
		return
	}

	now := r.now()
	r.pending += max(expected, 0)
	r.lastEvent = now
	r.lastHandshake = now
	if r.singleShard {
		r.lastHandshake = now.Add(-r.margin)
	}

	if r.pending == 0 {
		r.state = StateQuiescing
		r.deadline = r.lastHandshake.Add(r.window)
	} else {
		r.state = StateAccumulating
	}
	r.notify()
}

// OnGuildSnapshot records one guild snapshot. It reports whether the
// snapshot belongs to the startup burst; once the session is ready every
// snapshot is a regular guild join and false is returned.
func (r *Readiness) OnGuildSnapshot(g *Guild) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady || r.lastHandshake.IsZero() {
		return false
	}

	if g != nil && g.Large {
		r.large = append(r.large, g.ID)
	}
	if r.pending > 0 {
		r.pending--
	}
	r.lastEvent = r.now()

	if r.pending == 0 {
		if r.state == StateAccumulating {
			r.deadline = r.lastHandshake.Add(r.window)
		} else {
			r.deadline = r.lastEvent.Add(r.window)
		}
		r.state = StateQuiescing
	}
	r.notify()
	return true
}

// WaitUntilReady blocks until the session is ready or ctx is done.
// Snapshots arriving while it waits push the deadline back.
func (r *Readiness) WaitUntilReady(ctx context.Context) error {
	for {
		r.mu.Lock()
		if r.state == StateReady {
			r.mu.Unlock()
			return nil
		}
		changed := r.changed
		var timer *time.Timer
		var fire <-chan time.Time
		if r.state == StateQuiescing {
			d := r.deadline.Sub(r.now())
			if d <= 0 {
				r.markReady()
				r.mu.Unlock()
				return nil
			}
			timer = time.NewTimer(d)
			fire = timer.C
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-r.done:
			stopTimer(timer)
			return nil
		case <-changed:
			stopTimer(timer)
		case <-fire:
		}
	}
}

// Ready is closed once the session is ready.
func (r *Readiness) Ready() <-chan struct{} { return r.done }

// State returns the current state.
func (r *Readiness) State() ReadinessState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Pending returns the number of snapshots still expected.
func (r *Readiness) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// LargeGuilds returns the ids of large guilds seen during startup. They need
// member chunks requested separately.
func (r *Readiness) LargeGuilds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.large)
}

// markReady must be called with mu held.
func (r *Readiness) markReady() {
	r.state = StateReady
	close(r.done)
	r.notify()
}

// notify must be called with mu held.
func (r *Readiness) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
