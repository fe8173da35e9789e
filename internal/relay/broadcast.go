package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Delivery summarizes one room fan-out.
type Delivery struct {
	Recipients int
	Failed     []ConnectionID
}

// Engine fans frames out to the members of a room. Sends are handed to each
// member's Transport, which queues without blocking, so a slow recipient
// never delays the rest of the room.
type Engine struct {
	registry *Registry
	rooms    *Rooms
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine returns an engine over registry and rooms.
func NewEngine(registry *Registry, rooms *Rooms, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		registry: registry,
		rooms:    rooms,
		now:      now,
		logger:   logger,
		metrics:  m,
	}
}

// TimestampNow returns the current server time in epoch milliseconds. It is
// the only source of timestamps placed on outbound events.
func (e *Engine) TimestampNow() int64 {
	return e.now().UnixMilli()
}

// BroadcastToRoom sends frame to every member of room except exclude (pass
// the zero ConnectionID to exclude nobody). Failed recipients are logged,
// counted, unregistered and closed once the fan-out is done; the failure is
// never returned to the caller.
func (e *Engine) BroadcastToRoom(room string, frame []byte, exclude ConnectionID) Delivery {
	members := e.rooms.MembersOf(room)

	var result Delivery
	for _, id := range members {
		if exclude != "" && id == exclude {
			continue
		}
		result.Recipients++

		if err := e.send(id, frame); err != nil {
			e.metrics.DeliveryFailures.Inc()
			e.logger.Warn("delivery failed", "id", id, "room", room, "err", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		e.metrics.Deliveries.Inc()
	}

	e.removeFailed(result.Failed)
	return result
}

func (e *Engine) send(id ConnectionID, frame []byte) error {
	transport, ok := e.registry.transport(id)
	if !ok {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, ErrUnknownConnection)
	}
	if err := transport.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// removeFailed unregisters recipients whose send failed and closes their
// transports.
func (e *Engine) removeFailed(failed []ConnectionID) {
	for _, id := range failed {
		transport, err := e.registry.Unregister(id)
		if err != nil {
			continue
		}
		if err := transport.Close(); err != nil {
			e.logger.Debug("close after delivery failure", "id", id, "err", err)
		}
		e.logger.Info("client removed after delivery failure", "id", id, "connections", e.registry.Len())
	}
}
