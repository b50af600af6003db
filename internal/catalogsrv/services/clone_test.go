package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

func TestClone(t *testing.T) {
	f := newFixture(t)
	src := f.create(t, tenantA, CreateForm{
		Name:     "Hot Stone",
		Price:    price("75"),
		Category: strPtr("Massage"),
		Featured: true,
		Settings: json.RawMessage(`{"color": "red"}`),
	})
	ctx := catcommon.WithActor(context.Background(), "dana")

	c, err := f.svc.Clone(ctx, tenantA, "", src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, c.ID)
	assert.Equal(t, "Hot Stone (copy)", c.Name)
	assert.Equal(t, "hot-stone-copy", c.Slug)
	assert.Equal(t, catcommon.StatusDraft, c.Status)
	assert.False(t, c.Active)
	assert.False(t, c.Featured)
	assert.Equal(t, src.Price, c.Price)
	assert.Equal(t, src.Category, c.Category)
	assert.Equal(t, src.Description, c.Description)
	assert.JSONEq(t, `{"color": "red"}`, string(c.Settings))
	assert.Equal(t, src.TenantID, c.TenantID)

	n := f.recorder.Notifications()
	require.Len(t, n, 2)
	assert.Equal(t, notify.KindServiceCreated, n[1].Kind)
	assert.Equal(t, "dana", n[1].Actor)

	// the source is untouched
	got, err := f.svc.GetByID(ctx, tenantA, src.ID)
	require.NoError(t, err)
	assert.True(t, got.Featured)
	assert.Equal(t, catcommon.StatusActive, got.Status)
}

func TestCloneProbesSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.createNamed(t, tenantA, "Hot Stone")

	var slugs []string
	for i := 0; i < 3; i++ {
		c, err := f.svc.Clone(ctx, tenantA, "", src.ID)
		require.NoError(t, err)
		slugs = append(slugs, c.Slug)
	}
	assert.Equal(t, []string{"hot-stone-copy", "hot-stone-copy-1", "hot-stone-copy-2"}, slugs)

	c, err := f.svc.Clone(ctx, tenantA, "  Hot Stone  ", src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hot Stone", c.Name)
	assert.Equal(t, "hot-stone-1", c.Slug)
}

func TestCloneRetriesAfterConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	src := f.createNamed(t, tenantA, "Hot Stone")

	// the first insert of the clone loses a race for its slug
	f.faulty.failCreate = func(n int) error {
		if n == 2 {
			return dberror.ErrAlreadyExists.Msg("service already exists")
		}
		return nil
	}
	c, err := f.svc.Clone(context.Background(), tenantA, "", src.ID)
	require.NoError(t, err)
	assert.Equal(t, "hot-stone-copy-1", c.Slug)
}

func TestCloneErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.createNamed(t, tenantA, "Hot Stone")

	_, err := f.svc.Clone(ctx, tenantA, "", uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Source service not found", err.Error())

	_, err = f.svc.Clone(ctx, tenantB, "", src.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Clone(ctx, tenantA, strings.Repeat("x", 101), src.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	f.faulty.failCreate = func(int) error { return errStoreDown }
	_, err = f.svc.Clone(ctx, tenantA, "", src.ID)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, []string{notify.KindServiceCreated}, f.recorder.Kinds())
}

func TestCloneLongSourceName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.createNamed(t, tenantA, strings.Repeat("é", 98))

	c, err := f.svc.Clone(ctx, tenantA, "", src.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 93)+" (copy)", c.Name)
	assert.Equal(t, maxNameLen, utf8.RuneCountInString(c.Name))

	res, err := f.svc.BulkAction(ctx, tenantA, BulkRequest{Action: CloneEach{}, IDs: []uuid.UUID{src.ID}}, "erin")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Nil(t, res.Rollback)
	assert.Len(t, res.CreatedIDs, 1)
}

func TestCopyName(t *testing.T) {
	assert.Equal(t, "Reiki (copy)", copyName("Reiki"))
	assert.Equal(t, "Reiki (copy)", copyName("  Reiki "))
	// a space left at the cut is dropped
	assert.Equal(t, strings.Repeat("a", 92)+" (copy)", copyName(strings.Repeat("a", 92)+" bcdef"))
}
