// Package memory keeps the server inside its container memory limit.
//
// Unlike GOMAXPROCS, which Go derives from cgroup CPU limits, GOMEMLIMIT
// has to be configured explicitly. [ConfigureLimit] sets it from MEMORY_LIMIT
// (typically passed through the Kubernetes Downward API) scaled by
// MEMORY_RATIO, leaving headroom for ffprobe processes and goroutine stacks.
// An explicit GOMEMLIMIT always takes precedence.
//
// Every range request buffers up to one stream chunk in memory, so a burst
// of concurrent players is the main source of heap growth. [Monitor]
// samples heap usage and raises a pressure flag once usage crosses the
// critical water mark; the stream handler answers 503 with Retry-After
// while the flag is set. Pressure is released only after usage drops below
// the high water mark, so the flag does not flap around a single threshold.
package memory
