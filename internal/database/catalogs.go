package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const catalogColumns = "id, path, display_name, short_desc, long_desc, created_at, updated_at"

var catalogSortColumns = map[string]string{
	"display_name": "display_name COLLATE NOCASE",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

// CatalogStore implements Store for catalogs.
type CatalogStore struct{}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalog(row rowScanner) (Catalog, error) {
	var c Catalog
	var created, updated int64
	err := row.Scan(&c.ID, &c.Path, &c.DisplayName, &c.ShortDesc, &c.LongDesc, &created, &updated)
	c.CreatedAt = unixTime(created)
	c.UpdatedAt = unixTime(updated)
	return c, err
}

func catalogArgs(now int64) func(NewCatalog) []any {
	return func(n NewCatalog) []any {
		name := n.DisplayName
		if name == "" {
			name = n.Path
		}
		return []any{n.Path, name, n.ShortDesc, n.LongDesc, now, now}
	}
}

// Create inserts one catalog.
func (s CatalogStore) Create(ctx context.Context, q Querier, n NewCatalog) (Catalog, error) {
	rows, err := s.CreateMany(ctx, q, []NewCatalog{n})
	if err != nil {
		return Catalog{}, err
	}
	return rows[0], nil
}

// CreateMany inserts catalogs in batched multi-row statements.
func (CatalogStore) CreateMany(ctx context.Context, q Querier, ns []NewCatalog) ([]Catalog, error) {
	return insertMany(ctx, q,
		"INSERT INTO catalog (path, display_name, short_desc, long_desc, created_at, updated_at)",
		"(?, ?, ?, ?, ?, ?)",
		catalogColumns,
		ns,
		catalogArgs(time.Now().Unix()),
		func(r *sql.Rows) (Catalog, error) { return scanCatalog(r) },
	)
}

// Find returns the catalog with id, or ErrNotFound.
func (CatalogStore) Find(ctx context.Context, q Querier, id int64) (Catalog, error) {
	c, err := scanCatalog(q.QueryRowContext(ctx, "SELECT "+catalogColumns+" FROM catalog WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Catalog{}, ErrNotFound
	}
	return c, err
}

// FindAll lists catalogs sorted by display_name, created_at or updated_at.
func (CatalogStore) FindAll(ctx context.Context, q Querier, opts ListOptions) ([]Catalog, error) {
	query := "SELECT " + catalogColumns + " FROM catalog" + orderBy(opts, catalogSortColumns, "display_name")
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	catalogs := []Catalog{}
	for rows.Next() {
		c, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, rows.Err()
}

// Count returns the number of catalogs.
func (CatalogStore) Count(ctx context.Context, q Querier) (int64, error) {
	return count(ctx, q, "catalog")
}

// PathIDs maps every persisted catalog path to its id.
func (CatalogStore) PathIDs(ctx context.Context, q Querier) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, path FROM catalog")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		paths[path] = id
	}
	return paths, rows.Err()
}
