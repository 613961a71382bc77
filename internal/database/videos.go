package database

import (
	"context"
	"database/sql"
	"errors"
	"path"
	"time"
)

const videoColumns = "v.id, v.path, v.display_name, v.short_desc, v.long_desc, v.catalog_id, v.sequent_id, v.metadata_id, v.created_at, v.updated_at"

var videoSortColumns = map[string]string{
	"display_name": "v.display_name COLLATE NOCASE",
	"created_at":   "v.created_at",
	"updated_at":   "v.updated_at",
	"size":         "m.size",
	"duration":     "m.duration",
}

// VideoStore implements Store for videos.
type VideoStore struct{}

func scanVideo(row rowScanner, extra ...any) (Video, error) {
	var v Video
	var sequent, meta sql.NullInt64
	var created, updated int64
	dest := append([]any{
		&v.ID, &v.Path, &v.DisplayName, &v.ShortDesc, &v.LongDesc,
		&v.CatalogID, &sequent, &meta, &created, &updated,
	}, extra...)
	err := row.Scan(dest...)
	v.SequentID = nullableID(sequent)
	v.MetadataID = nullableID(meta)
	v.CreatedAt = unixTime(created)
	v.UpdatedAt = unixTime(updated)
	return v, err
}

func videoArgs(now int64) func(NewVideo) []any {
	return func(n NewVideo) []any {
		name := n.DisplayName
		if name == "" {
			name = path.Base(n.Path)
		}
		return []any{n.Path, name, n.ShortDesc, n.LongDesc, n.CatalogID, n.SequentID, n.MetadataID, now, now}
	}
}

// Create inserts one video.
func (s VideoStore) Create(ctx context.Context, q Querier, n NewVideo) (Video, error) {
	rows, err := s.CreateMany(ctx, q, []NewVideo{n})
	if err != nil {
		return Video{}, err
	}
	return rows[0], nil
}

// CreateMany inserts videos in batched multi-row statements.
func (VideoStore) CreateMany(ctx context.Context, q Querier, ns []NewVideo) ([]Video, error) {
	return insertMany(ctx, q,
		"INSERT INTO video (path, display_name, short_desc, long_desc, catalog_id, sequent_id, metadata_id, created_at, updated_at)",
		"(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		"id, path, display_name, short_desc, long_desc, catalog_id, sequent_id, metadata_id, created_at, updated_at",
		ns,
		videoArgs(time.Now().Unix()),
		func(r *sql.Rows) (Video, error) { return scanVideo(r) },
	)
}

// Find returns the video with id, or ErrNotFound.
func (VideoStore) Find(ctx context.Context, q Querier, id int64) (Video, error) {
	v, err := scanVideo(q.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM video v WHERE v.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return v, err
}

// FindAll lists videos. Sorting by size or duration uses the linked
// metadata; videos without metadata sort first.
func (s VideoStore) FindAll(ctx context.Context, q Querier, opts ListOptions) ([]Video, error) {
	return s.list(ctx, q, "", opts)
}

// FindByCatalogID lists the videos of one catalog.
func (s VideoStore) FindByCatalogID(ctx context.Context, q Querier, catalogID int64, opts ListOptions) ([]Video, error) {
	return s.list(ctx, q, " WHERE v.catalog_id = ?", opts, catalogID)
}

func (VideoStore) list(ctx context.Context, q Querier, where string, opts ListOptions, args ...any) ([]Video, error) {
	query := "SELECT " + videoColumns + " FROM video v LEFT JOIN metadata m ON m.id = v.metadata_id" +
		where + orderBy(opts, videoSortColumns, "display_name")
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// FindDetails returns a video joined with its metadata.
func (VideoStore) FindDetails(ctx context.Context, q Querier, id int64) (VideoDetails, error) {
	var mID sql.NullInt64
	var size, bitrate, width, height sql.NullInt64
	var duration, framerate sql.NullFloat64

	row := q.QueryRowContext(ctx, "SELECT "+videoColumns+", m.id, m.size, m.duration, m.bitrate, m.width, m.height, m.framerate"+
		" FROM video v LEFT JOIN metadata m ON m.id = v.metadata_id WHERE v.id = ?", id)
	v, err := scanVideo(row, &mID, &size, &duration, &bitrate, &width, &height, &framerate)
	if errors.Is(err, sql.ErrNoRows) {
		return VideoDetails{}, ErrNotFound
	}
	if err != nil {
		return VideoDetails{}, err
	}

	details := VideoDetails{Video: v}
	if mID.Valid {
		details.Metadata = &Metadata{
			ID:        mID.Int64,
			Size:      size.Int64,
			Duration:  duration.Float64,
			Bitrate:   bitrate.Int64,
			Width:     int(width.Int64),
			Height:    int(height.Int64),
			Framerate: framerate.Float64,
		}
	}
	return details, nil
}

// Count returns the number of videos.
func (VideoStore) Count(ctx context.Context, q Querier) (int64, error) {
	return count(ctx, q, "video")
}

// Paths returns the set of persisted video paths.
func (VideoStore) Paths(ctx context.Context, q Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT path FROM video")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}
