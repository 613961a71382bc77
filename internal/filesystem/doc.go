/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors (ESTALE).

Store roots are frequently NFS or SMB mounts. A stale handle is transient, so
StatWithRetry and OpenWithRetry retry it with exponential backoff (defaults:
3 retries, 50ms initial backoff, 500ms cap). Every other error is returned
immediately.

	f, err := filesystem.OpenWithRetry(absPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer f.Close()

Metrics are reported through an Observer installed with SetObserver; the
metrics package provides the Prometheus implementation. Paths are labeled
with a volume name by a VolumeResolver ("store", "database").
*/
package filesystem
