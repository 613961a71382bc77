package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/prober"
)

// FileStoreChanges counts the rows added by one reconciliation pass.
type FileStoreChanges struct {
	AddedCatalogs int `json:"added_catalogs"`
	AddedVideos   int `json:"added_videos"`
}

// IsZero reports whether the pass added nothing.
func (c FileStoreChanges) IsZero() bool {
	return c.AddedCatalogs == 0 && c.AddedVideos == 0
}

// ErrConflict marks a pass that lost a race with a concurrent pass.
// Running the pass again is safe.
var ErrConflict = errors.New("conflicting concurrent reconciliation")

// DatabaseError reports a database failure that aborted a pass. Nothing
// the pass wrote is persisted.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Is matches ErrConflict for unique violations and lock contention.
func (e *DatabaseError) Is(target error) bool {
	return target == ErrConflict && (database.IsUniqueViolation(e.Err) || database.IsBusy(e.Err))
}

// IsRetryable reports whether err came from a pass that may simply be rerun.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

func dbError(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

// Trigger labels what started a pass.
type Trigger string

// Pass triggers.
const (
	TriggerManual   Trigger = "manual"
	TriggerWatcher  Trigger = "watcher"
	TriggerSchedule Trigger = "schedule"
	TriggerStartup  Trigger = "startup"
)

// Stats describes reconciliation activity for health reporting.
type Stats struct {
	Running      bool             `json:"running"`
	TotalRuns    int64            `json:"total_runs"`
	LastRun      time.Time        `json:"last_run,omitempty"`
	LastDuration time.Duration    `json:"last_duration_ns"`
	LastTrigger  Trigger          `json:"last_trigger,omitempty"`
	LastResult   FileStoreChanges `json:"last_result"`
	LastError    string           `json:"last_error,omitempty"`
}

// videoCreator is the part of the video store the reconciler writes through.
type videoCreator interface {
	Create(ctx context.Context, q database.Querier, n database.NewVideo) (database.Video, error)
}

// treeScanner lists what is on disk below the store root.
type treeScanner interface {
	Root() string
	Scan(ctx context.Context) (ScanResult, error)
}

// Reconciler brings the database in line with the store on disk by creating
// the catalogs and videos it is missing. It never updates or deletes rows.
type Reconciler struct {
	db      *database.Database
	scanner treeScanner
	probes  *prober.Pool
	videos  videoCreator

	running atomic.Int32
	statsMu sync.RWMutex
	stats   Stats
}

// NewReconciler creates a reconciler. probes may be nil to skip metadata.
func NewReconciler(db *database.Database, scanner *Scanner, probes *prober.Pool) *Reconciler {
	return &Reconciler{
		db:      db,
		scanner: scanner,
		probes:  probes,
		videos:  db.Videos,
	}
}

// Reconcile runs one manually triggered pass.
func (r *Reconciler) Reconcile(ctx context.Context) (FileStoreChanges, error) {
	return r.Run(ctx, TriggerManual)
}

// Run performs one pass in a single transaction. On any error the
// transaction is rolled back and zero changes are returned.
func (r *Reconciler) Run(ctx context.Context, trigger Trigger) (FileStoreChanges, error) {
	start := time.Now()
	r.running.Add(1)
	metrics.ReconcileIsRunning.Inc()

	changes, err := r.reconcile(ctx)

	r.running.Add(-1)
	metrics.ReconcileIsRunning.Dec()
	r.finish(trigger, start, changes, err)
	return changes, err
}

func (r *Reconciler) reconcile(ctx context.Context) (FileStoreChanges, error) {
	batch, err := r.db.BeginBatch(ctx)
	if err != nil {
		return FileStoreChanges{}, dbError("begin", err)
	}

	changes, err := r.apply(ctx, batch)
	if endErr := r.db.EndBatch(batch, err); endErr != nil {
		if err == nil {
			return FileStoreChanges{}, dbError("commit", endErr)
		}
		return FileStoreChanges{}, endErr
	}
	return changes, nil
}

func (r *Reconciler) apply(ctx context.Context, batch *database.Batch) (FileStoreChanges, error) {
	var changes FileStoreChanges

	catalogIDs, err := r.db.Catalogs.PathIDs(ctx, batch)
	if err != nil {
		return changes, dbError("load catalogs", err)
	}
	persistedVideos, err := r.db.Videos.Paths(ctx, batch)
	if err != nil {
		return changes, dbError("load videos", err)
	}

	scan, err := r.scanner.Scan(ctx)
	if err != nil {
		return changes, err
	}

	newCatalogs := difference(scan.Catalogs, catalogIDs)
	newVideos := difference(scan.Videos, persistedVideos)

	if len(newCatalogs) == 0 && len(newVideos) == 0 {
		logging.Debug("Store unchanged: %d catalogs, %d videos", len(catalogIDs), len(persistedVideos))
		return changes, nil
	}

	known := make(map[string]struct{}, len(catalogIDs)+len(newCatalogs))
	for p := range catalogIDs {
		known[p] = struct{}{}
	}
	for _, p := range newCatalogs {
		known[p] = struct{}{}
	}

	candidates := make([]string, 0, len(newVideos))
	for _, v := range newVideos {
		if _, ok := known[catalogOf(v)]; !ok {
			logging.Warn("Skipping video %s: catalog %s not found", v, catalogOf(v))
			metrics.ReconcileOrphansSkipped.Inc()
			continue
		}
		candidates = append(candidates, v)
	}

	// Probe before the first write so the write lock is not held across
	// external process calls.
	probed := r.probe(ctx, candidates)

	if len(newCatalogs) > 0 {
		reqs := make([]database.NewCatalog, len(newCatalogs))
		for i, p := range newCatalogs {
			reqs[i] = database.NewCatalog{Path: p}
		}
		created, err := r.db.Catalogs.CreateMany(ctx, batch, reqs)
		if err != nil {
			return FileStoreChanges{}, dbError("insert catalogs", err)
		}
		for _, c := range created {
			catalogIDs[c.Path] = c.ID
		}
		changes.AddedCatalogs = len(created)
	}

	addedMetadata := 0
	for _, v := range candidates {
		catalogID, ok := catalogIDs[catalogOf(v)]
		if !ok {
			logging.Warn("Skipping video %s: catalog %s not found", v, catalogOf(v))
			metrics.ReconcileOrphansSkipped.Inc()
			continue
		}

		metadataID, err := r.createMetadata(ctx, batch, v, probed[v])
		if err != nil {
			return FileStoreChanges{}, err
		}
		if metadataID != nil {
			addedMetadata++
		}

		if _, err := r.videos.Create(ctx, batch, database.NewVideo{
			Path:       v,
			CatalogID:  catalogID,
			MetadataID: metadataID,
		}); err != nil {
			return FileStoreChanges{}, dbError("insert video", err)
		}
		changes.AddedVideos++
	}

	if !changes.IsZero() {
		if err := database.SetState(ctx, batch, database.KeyLastChange, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return FileStoreChanges{}, dbError("record change time", err)
		}
	}

	metrics.ReconcileAdded.WithLabelValues("metadata").Add(float64(addedMetadata))
	return changes, nil
}

// createMetadata stores m and returns its id. A row the database rejects is
// dropped so the video is still created without metadata; only conflicts
// and cancellation fail the pass.
func (r *Reconciler) createMetadata(ctx context.Context, batch *database.Batch, video string, m *prober.Metadata) (*int64, error) {
	if m == nil {
		return nil, nil
	}
	row, err := r.db.Metadata.Create(ctx, batch, database.NewMetadata{
		Size:      m.Size,
		Duration:  m.Duration,
		Bitrate:   m.Bitrate,
		Width:     m.Width,
		Height:    m.Height,
		Framerate: m.Framerate,
	})
	if err != nil {
		if database.IsUniqueViolation(err) || database.IsBusy(err) || ctx.Err() != nil {
			return nil, dbError("insert metadata", err)
		}
		logging.Warn("Storing %s without metadata: %v", video, err)
		return nil, nil
	}
	return &row.ID, nil
}

// probe returns metadata keyed by relative path.
func (r *Reconciler) probe(ctx context.Context, relPaths []string) map[string]*prober.Metadata {
	if r.probes == nil || len(relPaths) == 0 {
		return nil
	}

	abs := make([]string, len(relPaths))
	byAbs := make(map[string]string, len(relPaths))
	for i, p := range relPaths {
		abs[i] = filepath.Join(r.scanner.Root(), filepath.FromSlash(p))
		byAbs[abs[i]] = p
	}

	out := make(map[string]*prober.Metadata)
	for a, m := range r.probes.ProbeAll(ctx, abs) {
		out[byAbs[a]] = m
	}
	return out
}

func (r *Reconciler) finish(trigger Trigger, start time.Time, changes FileStoreChanges, err error) {
	duration := time.Since(start)

	result := "success"
	switch {
	case err != nil && IsRetryable(err):
		result = "conflict"
		logging.Warn("Reconcile (%s) lost a race with a concurrent pass: %v", trigger, err)
	case err != nil:
		result = "error"
		logging.Error("Reconcile (%s) failed after %v: %v", trigger, duration, err)
	case changes.IsZero():
		result = "noop"
	default:
		logging.Info("Reconcile (%s) complete: %d catalogs, %d videos added in %v",
			trigger, changes.AddedCatalogs, changes.AddedVideos, duration)
	}

	metrics.ReconcileRunsTotal.WithLabelValues(string(trigger), result).Inc()
	metrics.ReconcileDuration.Observe(duration.Seconds())
	metrics.ReconcileLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ReconcileAdded.WithLabelValues("catalog").Add(float64(changes.AddedCatalogs))
	metrics.ReconcileAdded.WithLabelValues("video").Add(float64(changes.AddedVideos))

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.TotalRuns++
	r.stats.LastRun = time.Now()
	r.stats.LastDuration = duration
	r.stats.LastTrigger = trigger
	r.stats.LastResult = changes
	r.stats.LastError = ""
	if err != nil {
		r.stats.LastError = err.Error()
	}
}

// Stats returns a snapshot of reconciliation activity.
func (r *Reconciler) Stats() Stats {
	r.statsMu.RLock()
	s := r.stats
	r.statsMu.RUnlock()
	s.Running = r.running.Load() > 0
	return s
}

// difference returns the sorted keys of have that are absent from known.
func difference[V any](have map[string]struct{}, known map[string]V) []string {
	var out []string
	for p := range have {
		if _, ok := known[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func catalogOf(videoPath string) string {
	first, _, _ := strings.Cut(videoPath, "/")
	return first
}
