package mediatypes

import (
	"path"
	"strings"
)

// SortField is a sort key accepted by list endpoints.
type SortField string

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	// SortByName sorts by display name, case-insensitively.
	SortByName SortField = "display_name"
	// SortByCreated sorts by creation time.
	SortByCreated SortField = "created_at"
	// SortByUpdated sorts by last update time.
	SortByUpdated SortField = "updated_at"
	// SortBySize sorts videos by probed file size.
	SortBySize SortField = "size"
	// SortByDuration sorts videos by probed duration.
	SortByDuration SortField = "duration"

	// SortAsc sorts in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortOrder = "desc"
)

// CatalogSortFields lists the sort keys valid for catalogs.
var CatalogSortFields = map[SortField]bool{
	SortByName:    true,
	SortByCreated: true,
	SortByUpdated: true,
}

// VideoSortFields lists the sort keys valid for videos.
var VideoSortFields = map[SortField]bool{
	SortByName:     true,
	SortByCreated:  true,
	SortByUpdated:  true,
	SortBySize:     true,
	SortByDuration: true,
}

// VideoMimeTypes maps lowercase extensions to the Content-Type sent when
// streaming.
var VideoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",
}

// ContentType returns the MIME type for a stored video path. Files with an
// unknown extension are still videos in the catalog and are served as
// application/octet-stream.
func ContentType(name string) string {
	if mime, ok := VideoMimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsKnownVideo reports whether name has a recognized video extension.
func IsKnownVideo(name string) bool {
	_, ok := VideoMimeTypes[strings.ToLower(path.Ext(name))]
	return ok
}

// ParseSortOrder returns SortDesc for "desc" in any case and SortAsc
// otherwise.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(s, string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}
