package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Hub is the relay service object. It owns the registry, the membership
// table and the broadcast engine, and serializes every operation on them
// behind one lock. Fan-out happens under the same lock, so broadcasts to a
// room reach each member in the order they were made.
type Hub struct {
	mu         sync.Mutex
	registry   *Registry
	rooms      *Rooms
	engine     *Engine
	logger     *slog.Logger
	metrics    *metrics.Metrics
	singleRoom bool
	closed     bool
}

// Stats is a point-in-time view of the hub's size.
type Stats struct {
	Connections int
	Rooms       int
}

type hubOptions struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	singleRoom bool
}

// Option configures a Hub.
type Option func(*hubOptions)

// WithLogger sets the hub's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *hubOptions) { o.logger = logger }
}

// WithMetrics sets the collectors the hub reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *hubOptions) { o.metrics = m }
}

// WithClock replaces the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *hubOptions) { o.now = now }
}

// WithSingleRoom makes a join move the connection out of every other room.
func WithSingleRoom(enabled bool) Option {
	return func(o *hubOptions) { o.singleRoom = enabled }
}

// NewHub creates an empty hub ready to accept connections.
func NewHub(opts ...Option) *Hub {
	o := hubOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	rooms := NewRooms()
	registry := NewRegistry(rooms)
	return &Hub{
		registry:   registry,
		rooms:      rooms,
		engine:     NewEngine(registry, rooms, o.now, o.logger, o.metrics),
		logger:     o.logger,
		metrics:    o.metrics,
		singleRoom: o.singleRoom,
	}
}

// Stats returns the current number of connections and non-empty rooms.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Connections: h.registry.Len(), Rooms: h.rooms.Len()}
}

// Members returns a sorted snapshot of the members of room.
func (h *Hub) Members(room string) []ConnectionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.MembersOf(room)
}

// Connection returns a snapshot of id, or ErrUnknownConnection.
func (h *Hub) Connection(id ConnectionID) (Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Get(id)
}

// Shutdown rejects new connections, unregisters every live one and closes
// their transports concurrently. It returns ctx.Err() if the transports do
// not close before ctx is done. Calling it again is a no-op.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	ids := h.registry.IDs()
	transports := make([]Transport, 0, len(ids))
	for _, id := range ids {
		if transport, err := h.registry.Unregister(id); err == nil {
			transports = append(transports, transport)
		}
	}
	h.updateGauges()
	h.mu.Unlock()

	h.logger.Info("shutting down hub", "connections", len(transports))

	var g errgroup.Group
	for _, transport := range transports {
		g.Go(transport.Close)
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		h.logger.Info("hub shutdown completed", "closed", len(transports))
		return err
	case <-ctx.Done():
		h.logger.Warn("hub shutdown deadline reached", "err", ctx.Err())
		return ctx.Err()
	}
}

// updateGauges must be called with h.mu held.
func (h *Hub) updateGauges() {
	h.metrics.Connections.Set(float64(h.registry.Len()))
	h.metrics.Rooms.Set(float64(h.rooms.Len()))
}
