package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/common/optional"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	e, err := f.svc.Create(context.Background(), tenantA, CreateForm{
		Name:        "  Swedish Massage ",
		Description: "Relaxing full body massage",
		Price:       price("80.00"),
		Features:    []string{" oils ", "", "towels"},
	}, "alice")
	require.NoError(t, err)

	assert.Equal(t, "Swedish Massage", e.Name)
	assert.Equal(t, "swedish-massage", e.Slug)
	assert.Equal(t, catcommon.StatusActive, e.Status)
	assert.True(t, e.Active)
	assert.False(t, e.Featured)
	assert.True(t, e.BookingEnabled)
	assert.Equal(t, 30, e.AdvanceBookingDays)
	assert.Equal(t, 24, e.MinAdvanceHours)
	assert.Equal(t, []string{"oils", "towels"}, e.Features)
	assert.Empty(t, e.RequiredSkills)
	assert.JSONEq(t, `{}`, string(e.Settings))
	require.NotNil(t, e.Price)
	assert.Equal(t, 80.0, *e.Price)
	require.NotNil(t, e.TenantID)
	assert.Equal(t, string(tenantA), *e.TenantID)
	assert.Equal(t, testNow, e.CreatedAt)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	n := f.recorder.Notifications()
	require.Len(t, n, 1)
	assert.Equal(t, notify.KindServiceCreated, n[0].Kind)
	assert.Equal(t, "alice", n[0].Actor)
	assert.Equal(t, e.ID, n[0].Service.ID)
}

func TestCreateStatusAndActive(t *testing.T) {
	f := newFixture(t)

	e := f.create(t, tenantA, CreateForm{Name: "Draft", Status: "draft"})
	assert.Equal(t, catcommon.StatusDraft, e.Status)
	assert.False(t, e.Active)

	inactive := false
	e = f.create(t, tenantA, CreateForm{Name: "Paused", Active: &inactive})
	assert.Equal(t, catcommon.StatusInactive, e.Status)
	assert.False(t, e.Active)
}

func TestCreateSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.create(t, tenantA, CreateForm{Name: "Café Crème & Co."})
	assert.Equal(t, "cafe-creme-co", e.Slug)

	e = f.create(t, tenantA, CreateForm{Name: "Custom", Slug: " My-Slug "})
	assert.Equal(t, "my-slug", e.Slug)

	_, err := f.svc.Create(ctx, tenantA, CreateForm{Name: "Café Creme Co", Description: "dup"}, "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "A service with this slug already exists", err.Error())

	// the same slug is free in another tenant
	e = f.create(t, tenantB, CreateForm{Name: "Café Creme Co"})
	assert.Equal(t, "cafe-creme-co", e.Slug)

	now := f.clock.Now()
	e = f.create(t, tenantA, CreateForm{Name: "???"})
	assert.Equal(t, fmt.Sprintf("service-%d", now.UnixMilli()), e.Slug)

	_, err = f.svc.Create(ctx, tenantA, CreateForm{Name: "Bad", Slug: "Not_Valid", Description: "x"}, "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Slug must contain only lowercase letters, numbers, and hyphens", err.Error())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		form CreateForm
		msg  string
	}{
		{"missing name", CreateForm{Name: "  ", Description: "x"}, "Name is required"},
		{"long name", CreateForm{Name: strings.Repeat("n", 101), Description: "x"}, "Service name is too long (max 100)"},
		{"missing description", CreateForm{Name: "Yoga"}, "Description is required"},
		{"long description", CreateForm{Name: "Yoga", Description: strings.Repeat("d", 2001)}, "Description too long (max 2000)"},
		{"negative price", CreateForm{Name: "Yoga", Description: "x", Price: price("-1")}, "Invalid price"},
		{"huge price", CreateForm{Name: "Yoga", Description: "x", Price: price("1000000")}, "Invalid price"},
		{"zero duration", CreateForm{Name: "Yoga", Description: "x", DurationMinutes: intPtr(0)}, "Invalid duration"},
		{"long category", CreateForm{Name: "Yoga", Description: "x", Category: strPtr(strings.Repeat("c", 51))}, "Category name too long (max 50)"},
		{"bad image", CreateForm{Name: "Yoga", Description: "x", Image: strPtr("not a url")}, "Invalid image URL"},
		{"bad status", CreateForm{Name: "Yoga", Description: "x", Status: "archived"}, "Invalid status"},
		{"bad settings", CreateForm{Name: "Yoga", Description: "x", Settings: json.RawMessage(`[1]`)}, "Invalid settings payload"},
		{"bad blackout", CreateForm{Name: "Yoga", Description: "x", BlackoutDates: []string{"next tuesday"}}, "Invalid blackout date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tenantA, tt.form, "tester")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
	assert.Empty(t, f.recorder.Notifications())
}

func TestCreateRequiresTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), catcommon.NullTenant, CreateForm{Name: "Yoga", Description: "x"}, "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func TestCreateIgnoresNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.recorder.Fail(assert.AnError)
	e, err := f.svc.Create(context.Background(), tenantA, CreateForm{Name: "Yoga", Description: "x"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "yoga", e.Slug)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, tenantA, CreateForm{
		Name:     "Reiki",
		Price:    price("50"),
		Settings: json.RawMessage(`{"color": "blue", "reminders": {"email": true}}`),
	})

	got, err := f.svc.Update(ctx, tenantA, e.ID, Patch{
		Price:    optional.Some(decimal.RequireFromString("65.5")),
		Category: optional.Some("Energy"),
		Settings: optional.Some(json.RawMessage(`{"reminders": {"sms": true}, "size": 2}`)),
	}, "bob")
	require.NoError(t, err)

	require.NotNil(t, got.Price)
	assert.Equal(t, 65.5, *got.Price)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Energy", *got.Category)
	assert.JSONEq(t, `{"color": "blue", "reminders": {"sms": true}, "size": 2}`, string(got.Settings))
	assert.Equal(t, e.Name, got.Name)
	assert.True(t, got.UpdatedAt.After(e.UpdatedAt))

	n := f.recorder.Notifications()
	require.Len(t, n, 2)
	assert.Equal(t, notify.KindServiceUpdated, n[1].Kind)
	assert.Equal(t, "bob", n[1].Actor)
	assert.Equal(t, []string{"category", "price", "settings"}, n[1].Changes)

	// clearing a nullable field
	got, err = f.svc.Update(ctx, tenantA, e.ID, Patch{Price: optional.Null[decimal.Decimal]()}, "bob")
	require.NoError(t, err)
	assert.Nil(t, got.Price)
}

func TestUpdateWithoutChangesDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	e := f.createNamed(t, tenantA, "Reiki")

	_, err := f.svc.Update(context.Background(), tenantA, e.ID, Patch{Name: optional.Some("Reiki")}, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{notify.KindServiceCreated}, f.recorder.Kinds())
}

func TestUpdateStatusMirrorsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createNamed(t, tenantA, "Reiki")

	got, err := f.svc.Update(ctx, tenantA, e.ID, Patch{Active: optional.Some(false)}, "bob")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, catcommon.StatusInactive, got.Status)

	got, err = f.svc.Update(ctx, tenantA, e.ID, Patch{Status: optional.Some("active")}, "bob")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, catcommon.StatusActive, got.Status)

	_, err = f.svc.Update(ctx, tenantA, e.ID, Patch{Active: optional.Null[bool]()}, "bob")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createNamed(t, tenantA, "Reiki")
	second := f.createNamed(t, tenantA, "Shiatsu")

	_, err := f.svc.Update(ctx, tenantA, second.ID, Patch{Slug: optional.Some(first.Slug)}, "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Update(ctx, tenantA, second.ID, Patch{Slug: optional.Null[string]()}, "bob")
	require.Error(t, err)
	assert.Equal(t, "Slug is required", err.Error())

	// keeping its own slug is not a conflict
	got, err := f.svc.Update(ctx, tenantA, second.ID, Patch{Slug: optional.Some(second.Slug), Name: optional.Some("Shiatsu Deluxe")}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "shiatsu", got.Slug)
	assert.Equal(t, "Shiatsu Deluxe", got.Name)
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createNamed(t, tenantA, "Reiki")

	_, err := f.svc.Update(ctx, tenantB, e.ID, Patch{Name: optional.Some("Stolen")}, "mallory")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, tenantA, uuid.New(), Patch{}, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateInvalidatesCachedEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createNamed(t, tenantA, "Reiki")

	_, err := f.svc.GetByID(ctx, tenantA, e.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, tenantA, e.ID, Patch{Name: optional.Some("Reiki II")}, "bob")
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, tenantA, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reiki II", got.Name)
}

func TestDeleteDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createNamed(t, tenantA, "Reiki")

	require.NoError(t, f.svc.Delete(ctx, tenantA, e.ID, "carol"))

	got, err := f.svc.GetByID(ctx, tenantA, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	assert.Equal(t, catcommon.StatusInactive, got.Status)

	// deleting twice succeeds
	require.NoError(t, f.svc.Delete(ctx, tenantA, e.ID, "carol"))
	assert.ErrorIs(t, f.svc.Delete(ctx, tenantA, uuid.New(), "carol"), ErrNotFound)
	assert.Equal(t, []string{notify.KindServiceCreated, notify.KindServiceDeleted, notify.KindServiceDeleted}, f.recorder.Kinds())
}

func TestMutationsEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, unsubscribe := f.bus.Subscribe(events.TopicAllServices, 16)
	defer unsubscribe()

	e := f.createNamed(t, tenantA, "Reiki")
	_, err := f.svc.Update(ctx, tenantA, e.ID, Patch{Featured: optional.Some(true)}, "bob")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, tenantA, e.ID, "bob"))

	got := collect(ch)
	require.Len(t, got, 3)
	assert.Equal(t, events.TopicServiceCreated, got[0].Type)
	assert.Equal(t, events.TopicServiceUpdated, got[1].Type)
	assert.Equal(t, events.TopicServiceDeleted, got[2].Type)
	for _, ev := range got {
		assert.Equal(t, tenantA, ev.TenantID)
		require.NotNil(t, ev.Service)
		assert.Equal(t, e.ID, ev.Service.ID)
	}
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createNamed(t, tenantA, "Reiki")

	f.clock.Set(testNow.Add(-time.Hour))
	got, err := f.svc.Update(ctx, tenantA, e.ID, Patch{Featured: optional.Some(true)}, "bob")
	require.NoError(t, err)
	assert.Equal(t, e.UpdatedAt, got.UpdatedAt)
}
