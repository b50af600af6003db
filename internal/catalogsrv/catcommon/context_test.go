package catcommon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/practiceops/servicecatalog/internal/common/optional"
)

func TestResolveTenantID(t *testing.T) {
	ctx := WithTenantID(context.Background(), "acme")

	tests := []struct {
		name     string
		ctx      context.Context
		override optional.Value[TenantId]
		want     TenantId
	}{
		{"override wins", ctx, optional.Some[TenantId]("other"), "other"},
		{"explicit null wins", ctx, optional.Null[TenantId](), NullTenant},
		{"falls back to context", ctx, optional.Value[TenantId]{}, "acme"},
		{"no context", context.Background(), optional.Value[TenantId]{}, NullTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTenantID(tt.ctx, tt.override))
		})
	}
}

func TestActor(t *testing.T) {
	assert.Equal(t, SystemActor, GetActor(context.Background()))
	assert.Equal(t, "u-1", GetActor(WithActor(context.Background(), "u-1")))
	assert.Equal(t, SystemActor, GetActor(WithActor(context.Background(), "")))
}

func TestCacheLabel(t *testing.T) {
	assert.Equal(t, "global", NullTenant.CacheLabel())
	assert.Equal(t, "acme", TenantId("acme").CacheLabel())
}

func TestIsApiVersionCompatible(t *testing.T) {
	assert.True(t, IsApiVersionCompatible("0.1.0"))
	assert.True(t, IsApiVersionCompatible("v0.1.0"))
	assert.False(t, IsApiVersionCompatible("0.2.0"))
	assert.False(t, IsApiVersionCompatible("1.0.0"))
	assert.False(t, IsApiVersionCompatible("garbage"))
}
