package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_BasicSelect(t *testing.T) {
	sql, args := From("services").Select("id", "name").Build()
	assert.Equal(t, `SELECT "id", "name" FROM "services"`, sql)
	assert.Empty(t, args)

	sql, _ = From("services").Build()
	assert.Equal(t, `SELECT * FROM "services"`, sql)
}

func TestBuilder_WhereAndPaging(t *testing.T) {
	sql, args := From("services").
		Select("id").
		Where(Eq("tenant_id", "acme")).
		Where(Gte("price", 10)).
		Where(Lte("price", 20)).
		Where(Ne("status", "DRAFT")).
		OrderBy("updated_at", Desc).
		OrderBy("id", Asc).
		Limit(20).
		Offset(40).
		Build()

	assert.Equal(t, `SELECT "id" FROM "services" WHERE "tenant_id" = $1 AND "price" >= $2 AND "price" <= $3 AND "status" <> $4 ORDER BY "updated_at" DESC, "id" ASC LIMIT $5 OFFSET $6`, sql)
	assert.Equal(t, []any{"acme", 10, 20, "DRAFT", int64(20), int64(40)}, args)
}

func TestBuilder_CountDropsPaging(t *testing.T) {
	base := From("services").Select("id").Where(Eq("featured", true)).OrderBy("name", Asc).Limit(5).Offset(5)
	sql, args := base.Count().Build()
	assert.Equal(t, `SELECT COUNT(*) FROM "services" WHERE "featured" = $1`, sql)
	assert.Equal(t, []any{true}, args)

	// the original builder is untouched
	sql, _ = base.Build()
	assert.Contains(t, sql, "LIMIT")
}

func TestBuilder_Immutability(t *testing.T) {
	base := From("services").Where(Eq("tenant_id", "a"))
	withStatus := base.Where(Eq("status", "ACTIVE"))
	withFeatured := base.Where(Eq("featured", true))

	sql1, args1 := withStatus.Build()
	sql2, args2 := withFeatured.Build()
	assert.Equal(t, `SELECT * FROM "services" WHERE "tenant_id" = $1 AND "status" = $2`, sql1)
	assert.Equal(t, `SELECT * FROM "services" WHERE "tenant_id" = $1 AND "featured" = $2`, sql2)
	assert.Equal(t, []any{"a", "ACTIVE"}, args1)
	assert.Equal(t, []any{"a", true}, args2)
}

func TestBuilder_GroupBy(t *testing.T) {
	sql, args := From("service_views v").
		Select("v.service_id", "COUNT(*)").
		Where(In("v.service_id", []string{"a"})).
		GroupBy("v.service_id").
		Build()
	assert.Equal(t, `SELECT v.service_id, COUNT(*) FROM service_views v WHERE v.service_id IN ($1) GROUP BY v.service_id`, sql)
	assert.Equal(t, []any{"a"}, args)
}

func TestConditions(t *testing.T) {
	sql, args := From("services").Where(In("id", []string{"a", "b"})).Build()
	assert.Equal(t, `SELECT * FROM "services" WHERE "id" IN ($1, $2)`, sql)
	assert.Equal(t, []any{"a", "b"}, args)

	sql, args = From("services").Where(In("id", []string{})).Build()
	assert.Equal(t, `SELECT * FROM "services" WHERE FALSE`, sql)
	assert.Empty(t, args)

	sql, _ = From("services").Where(IsNotNull("category")).Where(IsNull("image")).Build()
	assert.Equal(t, `SELECT * FROM "services" WHERE "category" IS NOT NULL AND "image" IS NULL`, sql)

	sql, args = From("services").Where(AnyILike("50%_off", "name", "slug")).Build()
	assert.Equal(t, `SELECT * FROM "services" WHERE ("name" ILIKE $1 OR "slug" ILIKE $1)`, sql)
	assert.Equal(t, []any{`%50\%\_off%`}, args)
}

func TestUpdateBuilder(t *testing.T) {
	sql, args := Update("services").
		Set("active", false).
		Set("status", "INACTIVE").
		Where(Eq("tenant_id", "acme")).
		Where(In("id", []int{1, 2})).
		Returning("id").
		Build()
	assert.Equal(t, `UPDATE "services" SET "active" = $1, "status" = $2 WHERE "tenant_id" = $3 AND "id" IN ($4, $5) RETURNING "id"`, sql)
	assert.Equal(t, []any{false, "INACTIVE", "acme", 1, 2}, args)

	sql, args = Update("services").Where(Eq("id", 1)).Build()
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"name"`, Ident("name"))
	assert.Equal(t, "COUNT(*)", Ident("COUNT(*)"))
	assert.Equal(t, "s.name", Ident("s.name"))
	assert.Equal(t, `\\`, EscapeLike(`\`))
}
