package prober

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Metadata is the best-effort result of a probe.
type Metadata struct {
	Size      int64
	Duration  float64
	Bitrate   int64
	Width     int
	Height    int
	Framerate float64
}

// Prober extracts metadata from one file. A false result means the probe
// failed; callers continue without metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*Metadata, bool)
}

// Noop is used when no probe tool is available.
type Noop struct{}

// Probe always reports no metadata.
func (Noop) Probe(context.Context, string) (*Metadata, bool) {
	metrics.ProbesTotal.WithLabelValues("skipped").Inc()
	return nil, false
}

// Pool runs probes on a bounded set of worker goroutines, away from the
// caller's goroutine.
type Pool struct {
	prober  Prober
	workers int
}

// NewPool creates a pool of at most workers concurrent probes.
func NewPool(p Prober, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{prober: p, workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// ProbeAll probes every path and returns the successful results keyed by
// path. Failed probes are simply absent from the map.
func (p *Pool) ProbeAll(ctx context.Context, paths []string) map[string]*Metadata {
	results := make(map[string]*Metadata, len(paths))
	if p == nil || len(paths) == 0 {
		return results
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for _, path := range paths {
		g.Go(func() error {
			meta, ok := p.probe(ctx, path)
			if ok {
				mu.Lock()
				results[path] = meta
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Debug("Probed %d files, %d with metadata", len(paths), len(results))
	return results
}

// probe shields the caller from a misbehaving Prober.
func (p *Pool) probe(ctx context.Context, path string) (meta *Metadata, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Metadata probe panicked for %s: %v", path, r)
			meta, ok = nil, false
		}
	}()

	if ctx.Err() != nil {
		return nil, false
	}
	return p.prober.Probe(ctx, path)
}
