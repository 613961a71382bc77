// Package database provides SQLite storage for catalogs, videos and their
// probed metadata.
//
// Each entity has a stateless store (CatalogStore, VideoStore,
// MetadataStore) implementing the generic Store capability. Store methods
// take a Querier, so the same code runs against the pool or inside a Batch
// transaction opened with BeginBatch and finished with EndBatch.
//
// The database runs in WAL mode with foreign keys enabled. Unique path
// constraints turn concurrent duplicate inserts into errors recognized by
// IsUniqueViolation; WithRetry retries statements that hit SQLITE_BUSY.
package database
