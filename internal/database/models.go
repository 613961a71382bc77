package database

import "time"

// Catalog is a top-level directory of the store.
type Catalog struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	ShortDesc   string    `json:"short_desc"`
	LongDesc    string    `json:"long_desc"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Video is a playable file below a catalog directory.
type Video struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	ShortDesc   string    `json:"short_desc"`
	LongDesc    string    `json:"long_desc"`
	CatalogID   int64     `json:"catalog_id"`
	SequentID   *int64    `json:"sequent_id,omitempty"`
	MetadataID  *int64    `json:"metadata_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Metadata holds probed stream properties. Every field is best effort.
type Metadata struct {
	ID        int64   `json:"id"`
	Size      int64   `json:"size"`
	Duration  float64 `json:"duration"`
	Bitrate   int64   `json:"bitrate"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Framerate float64 `json:"framerate"`
}

// VideoDetails is a video joined with its metadata, if any.
type VideoDetails struct {
	Video
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewCatalog describes a catalog row to insert.
type NewCatalog struct {
	Path        string
	DisplayName string // defaults to Path
	ShortDesc   string
	LongDesc    string
}

// NewVideo describes a video row to insert.
type NewVideo struct {
	Path        string
	DisplayName string // defaults to the file name
	ShortDesc   string
	LongDesc    string
	CatalogID   int64
	SequentID   *int64
	MetadataID  *int64
}

// NewMetadata describes a metadata row to insert.
type NewMetadata struct {
	Size      int64
	Duration  float64
	Bitrate   int64
	Width     int
	Height    int
	Framerate float64
}

// ListOptions controls ordering and paging of FindAll queries.
// A zero Limit returns every row.
type ListOptions struct {
	Sort       string
	Descending bool
	Limit      int
	Offset     int
}
