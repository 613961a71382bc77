package filesystem

// Observer receives filesystem metrics. The metrics package provides the
// Prometheus implementation, which keeps this package free of that import.
type Observer interface {
	// ObserveOperation records a plain operation ("stat", "read", "readdir")
	// against a volume label ("store", "database").
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// defaultObserver may be nil, in which case nothing is recorded.
var defaultObserver Observer

// SetObserver installs the package-level observer. Call once at startup.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
