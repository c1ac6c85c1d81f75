package service

import (
	"context"
	"log/slog"

	"github.com/iliyamo/task-tracker/internal/queue"
)

// BusPublisher publishes events to the durable message bus.
type BusPublisher interface {
	Publish(ctx context.Context, event queue.TaskEventType, data any) error
}

// Broadcaster notifies live subscribers. Delivery is best-effort.
type Broadcaster interface {
	Broadcast(event string)
}

// Forwarder pushes task snapshots to the analytics collector.
type Forwarder interface {
	Forward(ctx context.Context, snap queue.TaskSnapshot) error
}

// Dispatcher fans a committed task mutation out to the message bus, the
// live-update hub and the analytics collector. The three channels are
// independent: each failure is logged and contained, none can affect
// the others or the HTTP response of the mutation that triggered it.
type Dispatcher struct {
	bus       BusPublisher
	hub       Broadcaster
	analytics Forwarder
	logger    *slog.Logger
}

func NewDispatcher(bus BusPublisher, hub Broadcaster, analytics Forwarder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{bus: bus, hub: hub, analytics: analytics, logger: logger}
}

// TaskChanged emits one event for a create, update, assign or status
// change. Call it only after the store write has committed.
func (d *Dispatcher) TaskChanged(ctx context.Context, event queue.TaskEventType, snap queue.TaskSnapshot) {
	if err := d.bus.Publish(ctx, event, snap); err != nil {
		d.logger.Warn("bus publish failed", "event", event, "task", snap.ID, "err", err)
	}
	d.hub.Broadcast(string(event))
	if err := d.analytics.Forward(ctx, snap); err != nil {
		d.logger.Warn("analytics forward failed", "event", event, "task", snap.ID, "err", err)
	}
}

// TaskDeleted emits the deletion event. The row is gone, so the bus
// payload carries only the identifier and nothing is forwarded to
// analytics (the collector logs snapshots of live tasks).
func (d *Dispatcher) TaskDeleted(ctx context.Context, id uint64) {
	if err := d.bus.Publish(ctx, queue.TaskDeleted, queue.DeletedRef{ID: id}); err != nil {
		d.logger.Warn("bus publish failed", "event", queue.TaskDeleted, "task", id, "err", err)
	}
	d.hub.Broadcast(string(queue.TaskDeleted))
}
