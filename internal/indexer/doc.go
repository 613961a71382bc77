// Package indexer keeps the database in step with the store root.
//
// Classify decides what an entry is from its depth below the root:
// directories directly under the root are catalogs, files at depth two or
// more are videos, files directly under the root are ignored. Scanner walks
// the root and collects both sets. Reconciler diffs them against the
// persisted paths and creates what is missing in one transaction, probing
// new videos for metadata first.
//
// Passes can be started manually (HTTP scan endpoint), by the filesystem
// watcher, at startup, or on a cron schedule through Scheduler. Passes are
// idempotent; two passes racing to insert the same path surface as a
// DatabaseError matching ErrConflict, which is safe to retry.
package indexer
