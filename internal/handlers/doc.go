// Package handlers provides the HTTP handlers of the catalog server.
//
// It includes handlers for:
//   - Triggering a reconciliation pass over the store
//   - Listing catalogs and videos with their probed metadata
//   - Range streaming of stored videos
//   - Health, readiness and version reporting
package handlers
