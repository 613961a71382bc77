// Package prober extracts best-effort video metadata (size, duration,
// bitrate, resolution, frame rate) with ffprobe.
//
// Probing is an isolated failure domain: a missing binary, a corrupt file or
// a timeout all produce "no metadata" rather than an error. Pool runs probes
// on a bounded number of goroutines so the external process calls never
// block the caller's own work.
package prober
