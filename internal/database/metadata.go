package database

import (
	"context"
	"database/sql"
	"errors"
)

const metadataColumns = "id, size, duration, bitrate, width, height, framerate"

var metadataSortColumns = map[string]string{
	"id":       "id",
	"size":     "size",
	"duration": "duration",
}

// MetadataStore implements Store for probed metadata.
type MetadataStore struct{}

func scanMetadata(row rowScanner) (Metadata, error) {
	var m Metadata
	err := row.Scan(&m.ID, &m.Size, &m.Duration, &m.Bitrate, &m.Width, &m.Height, &m.Framerate)
	return m, err
}

func metadataArgs(n NewMetadata) []any {
	return []any{n.Size, n.Duration, n.Bitrate, n.Width, n.Height, n.Framerate}
}

// Create inserts one metadata row.
func (s MetadataStore) Create(ctx context.Context, q Querier, n NewMetadata) (Metadata, error) {
	rows, err := s.CreateMany(ctx, q, []NewMetadata{n})
	if err != nil {
		return Metadata{}, err
	}
	return rows[0], nil
}

// CreateMany inserts metadata rows in batched multi-row statements.
func (MetadataStore) CreateMany(ctx context.Context, q Querier, ns []NewMetadata) ([]Metadata, error) {
	return insertMany(ctx, q,
		"INSERT INTO metadata (size, duration, bitrate, width, height, framerate)",
		"(?, ?, ?, ?, ?, ?)",
		metadataColumns,
		ns,
		metadataArgs,
		func(r *sql.Rows) (Metadata, error) { return scanMetadata(r) },
	)
}

// Find returns the metadata row with id, or ErrNotFound.
func (MetadataStore) Find(ctx context.Context, q Querier, id int64) (Metadata, error) {
	m, err := scanMetadata(q.QueryRowContext(ctx, "SELECT "+metadataColumns+" FROM metadata WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, ErrNotFound
	}
	return m, err
}

// FindAll lists metadata rows.
func (MetadataStore) FindAll(ctx context.Context, q Querier, opts ListOptions) ([]Metadata, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+metadataColumns+" FROM metadata"+orderBy(opts, metadataSortColumns, "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Metadata{}
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of metadata rows.
func (MetadataStore) Count(ctx context.Context, q Querier) (int64, error) {
	return count(ctx, q, "metadata")
}
