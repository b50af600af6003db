// Package events publishes catalog change events. Events go to an
// in-memory Bus; a KafkaForwarder can relay them to a Kafka topic.
package events

import (
	"context"
	"time"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	TopicServiceCreated = "service:created"
	TopicServiceUpdated = "service:updated"
	TopicServiceDeleted = "service:deleted"
	TopicServiceBulk    = "service:bulk"

	// TopicAllServices matches every service topic.
	TopicAllServices = "service:*"
)

// ServiceRef identifies the entry an event is about.
type ServiceRef struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// Event is the payload of every service topic. Service is set for
// created, updated and deleted events. Action and Count are set for bulk
// events.
type Event struct {
	Type       string             `json:"type"`
	TenantID   catcommon.TenantId `json:"tenantId,omitempty"`
	Service    *ServiceRef        `json:"service,omitempty"`
	Action     string             `json:"action,omitempty"`
	Count      int                `json:"count,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// Emitter sends events. Implementations must not block the caller for
// long; delivery failures are reported but never retried.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// BusEmitter publishes events on a Bus.
type BusEmitter struct {
	bus     *Bus
	timeout time.Duration
}

// NewBusEmitter returns an Emitter that waits at most timeout for each
// subscriber. A timeout of zero never blocks; messages for a full
// subscriber are dropped and show in Bus.Dropped.
func NewBusEmitter(bus *Bus, timeout time.Duration) *BusEmitter {
	return &BusEmitter{bus: bus, timeout: timeout}
}

func (e *BusEmitter) Emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	e.bus.Publish(ev.Type, ev, e.timeout)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
