package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *Batch, so every store
// method can run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the capability shared by every entity: T is the row type and N
// the insert request.
type Store[T any, N any] interface {
	Create(ctx context.Context, q Querier, n N) (T, error)
	// CreateMany inserts all requests in batched statements. Rows come back
	// in no particular order.
	CreateMany(ctx context.Context, q Querier, ns []N) ([]T, error)
	Find(ctx context.Context, q Querier, id int64) (T, error)
	FindAll(ctx context.Context, q Querier, opts ListOptions) ([]T, error)
	Count(ctx context.Context, q Querier) (int64, error)
}

var (
	_ Store[Catalog, NewCatalog]   = CatalogStore{}
	_ Store[Video, NewVideo]       = VideoStore{}
	_ Store[Metadata, NewMetadata] = MetadataStore{}
)

// maxRowsPerInsert keeps multi-row inserts under SQLite's bound-parameter limit.
const maxRowsPerInsert = 100

// insertMany expands one VALUES tuple per row and runs the statement in
// chunks, collecting the RETURNING rows with scan.
func insertMany[N any, T any](
	ctx context.Context,
	q Querier,
	head, tuple, returning string,
	ns []N,
	args func(N) []any,
	scan func(*sql.Rows) (T, error),
) ([]T, error) {
	out := make([]T, 0, len(ns))
	for start := 0; start < len(ns); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(ns))
		chunk := ns[start:end]

		tuples := make([]string, len(chunk))
		var params []any
		for i, n := range chunk {
			tuples[i] = tuple
			params = append(params, args(n)...)
		}

		query := head + " VALUES " + strings.Join(tuples, ", ") + " RETURNING " + returning
		rows, err := q.QueryContext(ctx, query, params...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			out = append(out, v)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// orderBy builds an ORDER BY clause from a whitelist of sort keys.
// Unknown keys fall back to fallback.
func orderBy(opts ListOptions, columns map[string]string, fallback string) string {
	column, ok := columns[opts.Sort]
	if !ok {
		column = columns[fallback]
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", column, direction)
	if opts.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, max(opts.Offset, 0))
	}
	return clause
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func count(ctx context.Context, q Querier, table string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}
