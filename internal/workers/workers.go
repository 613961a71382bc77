package workers

import "runtime"

// DefaultProbeLimit caps the metadata probe pool.
const DefaultProbeLimit = 8

// Count scales GOMAXPROCS by multiplier and clamps the result to
// [1, limit]. GOMAXPROCS follows container CPU limits, unlike NumCPU.
// A limit of 0 means no cap.
func Count(multiplier float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns one worker per available CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns two workers per available CPU. Probes and directory walks
// mostly wait on the filesystem or a child process.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForProbes sizes the ffprobe pool. A positive override, typically from
// PROBE_WORKERS, wins; otherwise ForIO(DefaultProbeLimit).
func ForProbes(override int) int {
	if override > 0 {
		return override
	}
	return ForIO(DefaultProbeLimit)
}
