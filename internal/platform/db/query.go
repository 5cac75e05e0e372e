package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx. Every
// repository reaches the record store through it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SelectQuery builds a parameterised SELECT with filters, ordering and a
// bounded row count. Values are always bound as $n parameters; only column
// and table names supplied by code are interpolated.
type SelectQuery struct {
	columns []string
	from    string
	where   []string
	args    []interface{}
	orderBy []string
	limit   int
}

func Select(columns ...string) *SelectQuery {
	return &SelectQuery{columns: columns}
}

// From sets the relation, which may include joins.
func (q *SelectQuery) From(from string) *SelectQuery {
	q.from = from
	return q
}

func (q *SelectQuery) bind(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// Contains adds a case-insensitive substring match on one column. An empty
// term adds no condition.
func (q *SelectQuery) Contains(column, term string) *SelectQuery {
	return q.ContainsAny(term, column)
}

// ContainsAny matches term as a case-insensitive substring of any of the
// columns. LIKE wildcards in term match literally.
func (q *SelectQuery) ContainsAny(term string, columns ...string) *SelectQuery {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return q
	}
	p := q.bind("%" + EscapeLike(term) + "%")
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE " + p
	}
	if len(parts) == 1 {
		q.where = append(q.where, parts[0])
	} else {
		q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	}
	return q
}

// OrderBy appends an ordering expression such as "created_at DESC".
func (q *SelectQuery) OrderBy(expr ...string) *SelectQuery {
	q.orderBy = append(q.orderBy, expr...)
	return q
}

// Limit sets the row count, clamped to 1..max. A non-positive n means max.
func (q *SelectQuery) Limit(n, max int) *SelectQuery {
	q.limit = ClampLimit(n, max)
	return q
}

// SQL renders the statement and its arguments.
func (q *SelectQuery) SQL() (string, []interface{}) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.from)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return b.String(), q.args
}

// Query runs the statement on conn.
func (q *SelectQuery) Query(ctx context.Context, conn Querier) (pgx.Rows, error) {
	sql, args := q.SQL()
	return conn.Query(ctx, sql, args...)
}

// ClampLimit bounds n to 1..max, treating n <= 0 as max.
func ClampLimit(n, max int) int {
	if n <= 0 || n > max {
		return max
	}
	return n
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters using PostgreSQL's default escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
