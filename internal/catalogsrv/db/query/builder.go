// Package query builds parameterised PostgreSQL statements. Builders are
// immutable: every method returns a modified copy, so a base query can be
// shared between a page fetch and its count.
package query

import (
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// Direction represents ORDER BY direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

type orderTerm struct {
	column string
	dir    Direction
}

// Builder constructs SELECT statements.
type Builder struct {
	table        string
	selectCols   []string
	whereClauses []Condition
	groupBy      []string
	orderBy      []orderTerm
	limitVal     int64
	offsetVal    int64
}

// From creates a new Builder for the specified table.
func From(table string) *Builder {
	return &Builder{table: table}
}

// Select specifies the columns or expressions to retrieve.
func (b *Builder) Select(columns ...string) *Builder {
	nb := b.clone()
	nb.selectCols = append(nb.selectCols, columns...)
	return nb
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *Builder) Where(condition Condition) *Builder {
	nb := b.clone()
	nb.whereClauses = append(nb.whereClauses, condition)
	return nb
}

// GroupBy appends GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	nb := b.clone()
	nb.groupBy = append(nb.groupBy, columns...)
	return nb
}

// OrderBy appends a sort term. Earlier terms take precedence.
func (b *Builder) OrderBy(column string, direction Direction) *Builder {
	nb := b.clone()
	nb.orderBy = append(nb.orderBy, orderTerm{column: column, dir: direction})
	return nb
}

// Limit sets the maximum number of rows to return. Zero means no limit.
func (b *Builder) Limit(limit int64) *Builder {
	nb := b.clone()
	nb.limitVal = limit
	return nb
}

// Offset sets the number of rows to skip.
func (b *Builder) Offset(offset int64) *Builder {
	nb := b.clone()
	nb.offsetVal = offset
	return nb
}

// Count returns a builder for COUNT(*) over the same FROM and WHERE.
func (b *Builder) Count() *Builder {
	nb := b.clone()
	nb.selectCols = []string{"COUNT(*)"}
	nb.groupBy = nil
	nb.limitVal = 0
	nb.offsetVal = 0
	nb.orderBy = nil
	return nb
}

// Build returns the SQL text and its positional arguments.
func (b *Builder) Build() (string, []any) {
	var sql strings.Builder
	args := &Args{}

	sql.WriteString("SELECT ")
	if len(b.selectCols) == 0 {
		sql.WriteString("*")
	} else {
		cols := make([]string, len(b.selectCols))
		for i, c := range b.selectCols {
			cols[i] = Ident(c)
		}
		sql.WriteString(strings.Join(cols, ", "))
	}

	sql.WriteString(" FROM ")
	sql.WriteString(Ident(b.table))

	writeWhere(&sql, b.whereClauses, args)

	if len(b.groupBy) > 0 {
		cols := make([]string, len(b.groupBy))
		for i, c := range b.groupBy {
			cols[i] = Ident(c)
		}
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(cols, ", "))
	}

	if len(b.orderBy) > 0 {
		sql.WriteString(" ORDER BY ")
		terms := make([]string, len(b.orderBy))
		for i, t := range b.orderBy {
			terms[i] = Ident(t.column)
			if t.dir == Desc {
				terms[i] += " DESC"
			} else {
				terms[i] += " ASC"
			}
		}
		sql.WriteString(strings.Join(terms, ", "))
	}

	if b.limitVal > 0 {
		sql.WriteString(" LIMIT ")
		sql.WriteString(args.Add(b.limitVal))
	}
	if b.offsetVal > 0 {
		sql.WriteString(" OFFSET ")
		sql.WriteString(args.Add(b.offsetVal))
	}

	return sql.String(), args.Values()
}

func (b *Builder) clone() *Builder {
	nb := &Builder{
		table:        b.table,
		selectCols:   make([]string, len(b.selectCols)),
		whereClauses: make([]Condition, len(b.whereClauses)),
		groupBy:      make([]string, len(b.groupBy)),
		orderBy:      make([]orderTerm, len(b.orderBy)),
		limitVal:     b.limitVal,
		offsetVal:    b.offsetVal,
	}
	copy(nb.selectCols, b.selectCols)
	copy(nb.whereClauses, b.whereClauses)
	copy(nb.groupBy, b.groupBy)
	copy(nb.orderBy, b.orderBy)
	return nb
}

// UpdateBuilder constructs UPDATE statements.
type UpdateBuilder struct {
	table        string
	setCols      []string
	setVals      []any
	whereClauses []Condition
	returning    []string
}

// Update creates a new UpdateBuilder for table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set assigns value to column.
func (u *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	nu := u.clone()
	nu.setCols = append(nu.setCols, column)
	nu.setVals = append(nu.setVals, value)
	return nu
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (u *UpdateBuilder) Where(condition Condition) *UpdateBuilder {
	nu := u.clone()
	nu.whereClauses = append(nu.whereClauses, condition)
	return nu
}

// Returning adds a RETURNING clause.
func (u *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	nu := u.clone()
	nu.returning = append(nu.returning, columns...)
	return nu
}

// Build returns the SQL text and its positional arguments. An UPDATE
// without SET columns is not valid SQL and yields an empty statement.
func (u *UpdateBuilder) Build() (string, []any) {
	if len(u.setCols) == 0 {
		return "", nil
	}
	var sql strings.Builder
	args := &Args{}

	sql.WriteString("UPDATE ")
	sql.WriteString(Ident(u.table))
	sql.WriteString(" SET ")
	sets := make([]string, len(u.setCols))
	for i, c := range u.setCols {
		sets[i] = Ident(c) + " = " + args.Add(u.setVals[i])
	}
	sql.WriteString(strings.Join(sets, ", "))

	writeWhere(&sql, u.whereClauses, args)

	if len(u.returning) > 0 {
		cols := make([]string, len(u.returning))
		for i, c := range u.returning {
			cols[i] = Ident(c)
		}
		sql.WriteString(" RETURNING ")
		sql.WriteString(strings.Join(cols, ", "))
	}
	return sql.String(), args.Values()
}

func (u *UpdateBuilder) clone() *UpdateBuilder {
	nu := &UpdateBuilder{
		table:        u.table,
		setCols:      make([]string, len(u.setCols)),
		setVals:      make([]any, len(u.setVals)),
		whereClauses: make([]Condition, len(u.whereClauses)),
		returning:    make([]string, len(u.returning)),
	}
	copy(nu.setCols, u.setCols)
	copy(nu.setVals, u.setVals)
	copy(nu.whereClauses, u.whereClauses)
	copy(nu.returning, u.returning)
	return nu
}

func writeWhere(sql *strings.Builder, conds []Condition, args *Args) {
	if len(conds) == 0 {
		return
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.SQL(args)
	}
	sql.WriteString(" WHERE ")
	sql.WriteString(strings.Join(parts, " AND "))
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Ident quotes a plain lower-case identifier. Anything else, such as
// COUNT(*) or a qualified name, is returned as is.
func Ident(s string) string {
	if plainIdent.MatchString(s) {
		return pq.QuoteIdentifier(s)
	}
	return s
}
