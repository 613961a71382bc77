// Package mediatypes holds small shared definitions for media handling:
// the sort keys accepted by list endpoints and the Content-Type of a video
// by extension.
//
// Classification into catalogs and videos never looks at extensions; a
// file below a catalog is a video whatever its name. Extensions only pick
// the Content-Type header:
//
//	w.Header().Set("Content-Type", mediatypes.ContentType(video.Path))
//
// It has no dependencies beyond the standard library so any package can
// import it.
package mediatypes
