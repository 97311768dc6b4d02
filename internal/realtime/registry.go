package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/facezhuk/internal/domain"
)

const defaultSendTimeout = 5 * time.Second

// Channel is one live push connection as seen by the registry.
type Channel interface {
	// Credential returns the access token the client presented when connecting.
	Credential() string
	// Send delivers one text message.
	Send(ctx context.Context, message string) error
}

// IdentityResolver resolves the owner of a credential.
type IdentityResolver interface {
	ResolveIdentity(token string, enforceExpiry bool) (domain.Identity, error)
}

// Observer receives registry gauges and counters.
type Observer interface {
	SetConnections(n int)
	RecordBroadcast(delivered, dropped int)
}

// Connection is a registered channel and the time it was accepted. The owner
// is not cached: it is re-resolved from the credential on every broadcast.
type Connection struct {
	ID         string
	Channel    Channel
	AcceptedAt time.Time
}

// Registry holds every accepted channel until it is explicitly removed.
// Membership does not depend on credential validity.
type Registry struct {
	tokens      IdentityResolver
	logger      *zap.Logger
	observer    Observer
	sendTimeout time.Duration

	mu    sync.Mutex
	conns []*Connection
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithObserver reports connection counts and broadcast results.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithSendTimeout bounds each per-channel send during a broadcast.
func WithSendTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(tokens IdentityResolver, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tokens:      tokens,
		logger:      logger,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accept registers ch without checking its credential. It never fails.
func (r *Registry) Accept(ch Channel) *Connection {
	conn := &Connection{
		ID:         ulid.Make().String(),
		Channel:    ch,
		AcceptedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.conns = append(r.conns, conn)
	n := len(r.conns)
	r.mu.Unlock()

	r.report(n)
	r.logger.Debug("realtime connection accepted", zap.String("conn_id", conn.ID))
	return conn
}

// Remove drops ch from the registry. It is a no-op when ch is absent.
func (r *Registry) Remove(ch Channel) {
	r.mu.Lock()
	removed := false
	for i, c := range r.conns {
		if c.Channel == ch {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			removed = true
			break
		}
	}
	n := len(r.conns)
	r.mu.Unlock()

	if removed {
		r.report(n)
	}
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// ResolveOwner returns the username the channel's credential currently
// resolves to. Any verification failure yields ok=false, never an error.
func (r *Registry) ResolveOwner(ch Channel) (string, bool) {
	token := ch.Credential()
	if token == "" {
		return "", false
	}
	identity, err := r.tokens.ResolveIdentity(token, true)
	if err != nil || identity.Username == "" {
		return "", false
	}
	return identity.Username, true
}

// Broadcast sends message to every channel whose credential resolves to
// username at this moment. The registry is drained and refilled under one lock;
// channels whose send fails are dropped, all others stay registered whether or
// not they matched. It returns the number of deliveries.
func (r *Registry) Broadcast(ctx context.Context, username, message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.conns
	r.conns = nil

	var matched []*Connection
	for _, c := range drained {
		if owner, ok := r.ResolveOwner(c.Channel); ok && owner == username {
			matched = append(matched, c)
		}
	}

	failed := r.sendAll(ctx, matched, message)

	living := make([]*Connection, 0, len(drained))
	for _, c := range drained {
		if _, dead := failed[c]; dead {
			continue
		}
		living = append(living, c)
	}
	r.conns = living

	delivered := len(matched) - len(failed)
	if r.observer != nil {
		r.observer.RecordBroadcast(delivered, len(failed))
		if len(failed) > 0 {
			r.observer.SetConnections(len(living))
		}
	}
	return delivered
}

// sendAll delivers concurrently so a slow or dead channel cannot hold up the rest.
func (r *Registry) sendAll(ctx context.Context, targets []*Connection, message string) map[*Connection]struct{} {
	failed := make(map[*Connection]struct{})
	if len(targets) == 0 {
		return failed
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, c := range targets {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
			defer cancel()
			if err := c.Channel.Send(sendCtx, message); err != nil {
				r.logger.Info("realtime send failed; dropping connection",
					zap.String("conn_id", c.ID), zap.Error(err))
				mu.Lock()
				failed[c] = struct{}{}
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return failed
}

func (r *Registry) report(n int) {
	if r.observer != nil {
		r.observer.SetConnections(n)
	}
}
