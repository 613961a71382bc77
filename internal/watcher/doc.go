// Package watcher runs reconciliation passes when the store tree changes.
//
// The Watcher is an explicit state machine:
//
//	Uninitialized -> Watching -> Debouncing -> Reconciling -> Watching
//
// with a terminal Failed state, entered when the OS watch cannot be set up
// (ErrWatchInit) or when the store root itself disappears (ErrRootRemoved).
// A failed watcher leaves the rest of the server running; passes can still
// be triggered manually or by the scheduler.
package watcher
