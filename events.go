package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/notify/provider"
)

// Event names for notification events.
const (
	EventNameChannelDispatched = "notify.channel.dispatched"
	EventNameBulkCompleted     = "notify.bulk.completed"
)

// ChannelDispatchedEvent is published once per (recipient, channel) attempt,
// including skipped channels.
type ChannelDispatchedEvent struct {
	BatchID     string              `json:"batch_id,omitempty"`
	RecipientID string              `json:"recipient_id"`
	Channel     provider.Capability `json:"channel"`
	Driver      string              `json:"driver,omitempty"`
	Status      DispatchStatus      `json:"status"`
	MessageID   string              `json:"message_id,omitempty"`
	Error       string              `json:"error,omitempty"`
	At          time.Time           `json:"at"`
}

// BulkCompletedEvent is published when a bulk dispatch finishes.
type BulkCompletedEvent struct {
	BatchID        string                `json:"batch_id"`
	Channels       []provider.Capability `json:"channels"`
	Recipients     int                   `json:"recipients"`
	SuccessCount   int                   `json:"success_count"`
	ErrorCount     int                   `json:"error_count"`
	TotalProcessed int                   `json:"total_processed"`
	Duration       time.Duration         `json:"duration"`
	CompletedAt    time.Time             `json:"completed_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().ChannelDispatched.Subscribe(ctx, handler)
//	svc.Events().BulkCompleted.Subscribe(ctx, handler)
type ServiceEvents struct {
	// ChannelDispatched is published for every channel attempt.
	ChannelDispatched event.Event[ChannelDispatchedEvent]

	// BulkCompleted is published when NotifyAll or NotifyIDs finishes.
	BulkCompleted event.Event[BulkCompletedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		ChannelDispatched: event.New[ChannelDispatchedEvent](namePrefix + "." + EventNameChannelDispatched),
		BulkCompleted:     event.New[BulkCompletedEvent](namePrefix + "." + EventNameBulkCompleted),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.ChannelDispatched); err != nil {
		return fmt.Errorf("register ChannelDispatched: %w", err)
	}
	if err := event.Register(ctx, bus, events.BulkCompleted); err != nil {
		return fmt.Errorf("register BulkCompleted: %w", err)
	}
	return nil
}
