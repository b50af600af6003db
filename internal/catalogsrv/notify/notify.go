// Package notify dispatches catalog change notifications. Dispatch is fire
// and forget: callers log a returned error and move on.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	KindServiceCreated = "service.created"
	KindServiceUpdated = "service.updated"
	KindServiceDeleted = "service.deleted"
	KindBulkAction     = "service.bulk"
)

// ErrQueueFull is returned when a notification is dropped because the
// delivery queue is full.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by a notifier that was stopped.
var ErrStopped = errors.New("notifier stopped")

// ServiceInfo identifies the entry a notification is about.
type ServiceInfo struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// Notification is the delivered payload.
type Notification struct {
	Kind     string             `json:"kind"`
	TenantID catcommon.TenantId `json:"tenantId,omitempty"`
	Actor    string             `json:"actor"`
	Service  *ServiceInfo       `json:"service,omitempty"`
	Changes  []string           `json:"changes,omitempty"`
	Action   string             `json:"action,omitempty"`
	Count    int                `json:"count,omitempty"`
	SentAt   time.Time          `json:"sentAt"`
}

// Notifier announces catalog changes.
type Notifier interface {
	ServiceCreated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error
	ServiceUpdated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, changes []string, actor string) error
	ServiceDeleted(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error
	BulkAction(ctx context.Context, tenantID catcommon.TenantId, action string, count int, actor string) error
}

// sender is implemented by every concrete notifier; dispatcher turns it
// into a Notifier.
type sender interface {
	send(ctx context.Context, n Notification) error
}

type dispatcher struct {
	sender
}

func (d dispatcher) ServiceCreated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error {
	return d.send(ctx, Notification{Kind: KindServiceCreated, TenantID: tenantID, Actor: actor, Service: &svc, SentAt: time.Now().UTC()})
}

func (d dispatcher) ServiceUpdated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, changes []string, actor string) error {
	return d.send(ctx, Notification{Kind: KindServiceUpdated, TenantID: tenantID, Actor: actor, Service: &svc, Changes: changes, SentAt: time.Now().UTC()})
}

func (d dispatcher) ServiceDeleted(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error {
	return d.send(ctx, Notification{Kind: KindServiceDeleted, TenantID: tenantID, Actor: actor, Service: &svc, SentAt: time.Now().UTC()})
}

func (d dispatcher) BulkAction(ctx context.Context, tenantID catcommon.TenantId, action string, count int, actor string) error {
	return d.send(ctx, Notification{Kind: KindBulkAction, TenantID: tenantID, Actor: actor, Action: action, Count: count, SentAt: time.Now().UTC()})
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) ServiceCreated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error {
	return m.each(func(n Notifier) error { return n.ServiceCreated(ctx, tenantID, svc, actor) })
}

func (m Multi) ServiceUpdated(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, changes []string, actor string) error {
	return m.each(func(n Notifier) error { return n.ServiceUpdated(ctx, tenantID, svc, changes, actor) })
}

func (m Multi) ServiceDeleted(ctx context.Context, tenantID catcommon.TenantId, svc ServiceInfo, actor string) error {
	return m.each(func(n Notifier) error { return n.ServiceDeleted(ctx, tenantID, svc, actor) })
}

func (m Multi) BulkAction(ctx context.Context, tenantID catcommon.TenantId, action string, count int, actor string) error {
	return m.each(func(n Notifier) error { return n.BulkAction(ctx, tenantID, action, count, actor) })
}

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
