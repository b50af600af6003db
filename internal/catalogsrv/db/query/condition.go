package query

import (
	"strconv"
	"strings"
)

// Condition is a WHERE clause fragment. Implementations register their
// values with args and embed the returned placeholders.
type Condition interface {
	SQL(args *Args) string
}

// Args accumulates positional parameters for a PostgreSQL statement.
type Args struct {
	values []any
}

// Add appends v and returns its placeholder ($1, $2, ...).
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// Values returns the accumulated parameters in placeholder order.
func (a *Args) Values() []any {
	return a.values
}

type compareCondition struct {
	field string
	op    string
	value any
}

func (c *compareCondition) SQL(args *Args) string {
	return Ident(c.field) + " " + c.op + " " + args.Add(c.value)
}

// Eq creates an equality condition: field = value.
func Eq(field string, value any) Condition {
	return &compareCondition{field: field, op: "=", value: value}
}

// Ne creates an inequality condition: field <> value.
func Ne(field string, value any) Condition {
	return &compareCondition{field: field, op: "<>", value: value}
}

// Gte creates field >= value.
func Gte(field string, value any) Condition {
	return &compareCondition{field: field, op: ">=", value: value}
}

// Lte creates field <= value.
func Lte(field string, value any) Condition {
	return &compareCondition{field: field, op: "<=", value: value}
}

type inCondition struct {
	field  string
	values []any
}

// In creates field IN (...). An empty list matches nothing.
func In[T any](field string, values []T) Condition {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return &inCondition{field: field, values: vs}
}

func (c *inCondition) SQL(args *Args) string {
	if len(c.values) == 0 {
		return "FALSE"
	}
	ph := make([]string, len(c.values))
	for i, v := range c.values {
		ph[i] = args.Add(v)
	}
	return Ident(c.field) + " IN (" + strings.Join(ph, ", ") + ")"
}

type isNullCondition struct {
	field string
	not   bool
}

// IsNull creates field IS NULL.
func IsNull(field string) Condition {
	return &isNullCondition{field: field}
}

// IsNotNull creates field IS NOT NULL.
func IsNotNull(field string) Condition {
	return &isNullCondition{field: field, not: true}
}

func (c *isNullCondition) SQL(args *Args) string {
	if c.not {
		return Ident(c.field) + " IS NOT NULL"
	}
	return Ident(c.field) + " IS NULL"
}

type anyILikeCondition struct {
	fields  []string
	pattern string
}

// AnyILike matches when any of fields contains term, case-insensitively.
// LIKE wildcards in term are escaped so they match literally.
func AnyILike(term string, fields ...string) Condition {
	return &anyILikeCondition{fields: fields, pattern: "%" + EscapeLike(term) + "%"}
}

func (c *anyILikeCondition) SQL(args *Args) string {
	if len(c.fields) == 0 {
		return "TRUE"
	}
	ph := args.Add(c.pattern)
	parts := make([]string, len(c.fields))
	for i, f := range c.fields {
		parts[i] = Ident(f) + " ILIKE " + ph
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE metacharacters in s.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
