package metrics

// Watcher state labels, kept in sync with watcher.State.String().
var watcherStates = []string{"uninitialized", "watching", "debouncing", "reconciling", "failed"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics() {
	volumes := []string{"store", "database", "unknown"}

	for _, vol := range volumes {
		for _, op := range []string{"stat", "read", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, trigger := range []string{"watcher", "manual", "schedule", "startup"} {
		for _, result := range []string{"success", "noop", "conflict", "error"} {
			ReconcileRunsTotal.WithLabelValues(trigger, result)
		}
	}

	for _, entity := range []string{"catalog", "video", "metadata"} {
		ReconcileAdded.WithLabelValues(entity)
	}

	for _, kind := range []string{"catalog", "video", "ignored", "unclassifiable", "error"} {
		ScanEntriesTotal.WithLabelValues(kind)
	}

	for _, result := range []string{"success", "failure", "skipped"} {
		ProbesTotal.WithLabelValues(result)
	}

	for _, outcome := range []string{"full", "partial", "not_found", "unsatisfiable", "error"} {
		StreamRequestsTotal.WithLabelValues(outcome)
	}

	SetWatcherState("uninitialized")
}

// SetWatcherState marks state as the active watcher state.
func SetWatcherState(state string) {
	for _, s := range watcherStates {
		v := 0.0
		if s == state {
			v = 1
		}
		WatcherState.WithLabelValues(s).Set(v)
	}
}
