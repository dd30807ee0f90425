package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultErrorBuffer is the capacity of a session's error channel.
const DefaultErrorBuffer = 64

// Session is one authenticated gateway connection. Several sessions with
// different capability masks may share a Router.
type Session struct {
	id     string
	mask   Mask
	masked bool
	errs   chan error
	ready  *Readiness
	log    *slog.Logger

	watch sync.Once
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	id         string
	mask       *Mask
	errBuffer  int
	quiescence time.Duration
	margin     time.Duration
	shards     int
	logger     *slog.Logger
}

// WithSessionID sets the session id. The default is a random UUID.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) { c.id = id }
}

// WithMask declares the capabilities the session subscribes to. A session
// without a mask is unfiltered and receives every tag.
func WithMask(m Mask) SessionOption {
	return func(c *sessionConfig) { c.mask = &m }
}

// WithErrorBuffer sets the capacity of the session's error channel.
func WithErrorBuffer(n int) SessionOption {
	return func(c *sessionConfig) { c.errBuffer = n }
}

// WithQuiescence sets how long the snapshot stream must stay quiet before
// the session is ready.
func WithQuiescence(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.quiescence = d }
}

// WithHandshakeMargin sets how far the handshake time is moved back on
// single-shard sessions.
func WithHandshakeMargin(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.margin = d }
}

// WithShardCount sets the number of shards the session's deployment runs.
// The handshake margin only applies to single-shard deployments.
func WithShardCount(n int) SessionOption {
	return func(c *sessionConfig) { c.shards = n }
}

// WithSessionLogger sets the logger used for dropped errors.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = l }
}

// NewSession creates a session.
func NewSession(opts ...SessionOption) *Session {
	cfg := sessionConfig{
		errBuffer:  DefaultErrorBuffer,
		quiescence: DefaultQuiescence,
		margin:     DefaultHandshakeMargin,
		shards:     1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Session{
		id:    cfg.id,
		errs:  make(chan error, max(cfg.errBuffer, 0)),
		ready: newReadiness(cfg.quiescence, cfg.margin, cfg.shards <= 1),
		log:   cfg.logger.With(slog.String("session", cfg.id)),
	}
	if cfg.mask != nil {
		s.mask = newMask(cfg.mask.bits)
		s.masked = true
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mask returns the session's capability mask and whether one was declared.
func (s *Session) Mask() (Mask, bool) { return s.mask, s.masked }

// Wants reports whether the session subscribes to c. Unfiltered sessions
// want everything.
func (s *Session) Wants(c Capability) bool {
	return !s.masked || s.mask.Has(c)
}

// Errors delivers decode, handler and fetch failures that belong to this
// session.
func (s *Session) Errors() <-chan error { return s.errs }

// Readiness returns the session's startup tracker.
func (s *Session) Readiness() *Readiness { return s.ready }

// WaitUntilReady blocks until the startup burst of guild snapshots settled.
func (s *Session) WaitUntilReady(ctx context.Context) error {
	return s.ready.WaitUntilReady(ctx)
}

// report delivers err without blocking. It returns false when the buffer
// is full and the error was dropped.
func (s *Session) report(err error) bool {
	select {
	case s.errs <- err:
		return true
	default:
		s.log.Warn("session error dropped", slog.Any("error", err))
		return false
	}
}
