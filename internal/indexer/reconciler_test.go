package indexer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-catalog/internal/database"
	"media-catalog/internal/metrics"
	"media-catalog/internal/prober"
)

func setupReconciler(t *testing.T, probes *prober.Pool) (*Reconciler, *database.Database, string) {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	root := t.TempDir()
	return NewReconciler(db, NewScanner(root, ScannerConfig{SkipHidden: true}), probes), db, root
}

func countRows(t *testing.T, db *database.Database) (catalogs, videos int64) {
	t.Helper()
	ctx := context.Background()
	err := db.Query(ctx, "test_count", func(q database.Querier) error {
		var err error
		if catalogs, err = db.Catalogs.Count(ctx, q); err != nil {
			return err
		}
		videos, err = db.Videos.Count(ctx, q)
		return err
	})
	require.NoError(t, err)
	return catalogs, videos
}

type fakeProber struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  []string
}

func (f *fakeProber) Probe(_ context.Context, path string) (*prober.Metadata, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.failOn[filepath.Base(path)] {
		return nil, false
	}
	return &prober.Metadata{Size: 5, Duration: 90, Width: 1280, Height: 720}, true
}

func TestReconciler_AddsNewEntriesOnce(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	writeTree(t, root, "Movies/Inception.mp4")
	ctx := context.Background()

	changes, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1, AddedVideos: 1}, changes)

	changes, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, changes.IsZero())

	catalogs, videos := countRows(t, db)
	assert.Equal(t, int64(1), catalogs)
	assert.Equal(t, int64(1), videos)

	var all []database.Video
	require.NoError(t, db.Query(ctx, "test_list", func(q database.Querier) error {
		var err error
		all, err = db.Videos.FindAll(ctx, q, database.ListOptions{})
		return err
	}))
	require.Len(t, all, 1)
	assert.Equal(t, "Movies/Inception.mp4", all[0].Path)
	assert.Equal(t, "Inception.mp4", all[0].DisplayName)
	assert.Nil(t, all[0].MetadataID)

	last, err := db.LastChange(ctx)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestReconciler_IncrementalPass(t *testing.T) {
	r, _, root := setupReconciler(t, nil)
	ctx := context.Background()

	writeTree(t, root, "Movies/a.mp4", "Shows/")
	changes, err := r.Run(ctx, TriggerStartup)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 2, AddedVideos: 1}, changes)

	writeTree(t, root, "Movies/b.mp4", "Shows/S01/e01.mkv", "Docs/")
	changes, err = r.Run(ctx, TriggerWatcher)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1, AddedVideos: 2}, changes)

	stats := r.Stats()
	assert.Equal(t, int64(2), stats.TotalRuns)
	assert.Equal(t, TriggerWatcher, stats.LastTrigger)
	assert.Equal(t, changes, stats.LastResult)
	assert.Empty(t, stats.LastError)
	assert.False(t, stats.Running)
}

func TestReconciler_IgnoresRootFilesAndHidden(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	writeTree(t, root, "loose.mp4", ".cache/x.mp4", "Movies/.part.mp4")

	changes, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1}, changes)

	catalogs, videos := countRows(t, db)
	assert.Equal(t, int64(1), catalogs)
	assert.Zero(t, videos)
}

func TestReconciler_StoresProbedMetadata(t *testing.T) {
	fp := &fakeProber{failOn: map[string]bool{"broken.mp4": true}}
	r, db, root := setupReconciler(t, prober.NewPool(fp, 2))
	writeTree(t, root, "Movies/good.mp4", "Movies/broken.mp4")
	ctx := context.Background()

	changes, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1, AddedVideos: 2}, changes)

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "Movies", "good.mp4"),
		filepath.Join(root, "Movies", "broken.mp4"),
	}, fp.calls)

	var videos []database.Video
	require.NoError(t, db.Query(ctx, "test_list", func(q database.Querier) error {
		var err error
		videos, err = db.Videos.FindAll(ctx, q, database.ListOptions{})
		return err
	}))
	require.Len(t, videos, 2)

	for _, v := range videos {
		var details database.VideoDetails
		require.NoError(t, db.Query(ctx, "test_details", func(q database.Querier) error {
			var err error
			details, err = db.Videos.FindDetails(ctx, q, v.ID)
			return err
		}))

		switch v.Path {
		case "Movies/good.mp4":
			require.NotNil(t, details.Metadata)
			assert.Equal(t, 1280, details.Metadata.Width)
			assert.InDelta(t, 90.0, details.Metadata.Duration, 0.001)
		case "Movies/broken.mp4":
			assert.Nil(t, details.Metadata)
		default:
			t.Fatalf("unexpected video %s", v.Path)
		}
	}
}

type nonFiniteProber struct{}

func (nonFiniteProber) Probe(_ context.Context, path string) (*prober.Metadata, bool) {
	if filepath.Base(path) == "nan.mp4" {
		return &prober.Metadata{Duration: math.NaN(), Framerate: math.Inf(1)}, true
	}
	return &prober.Metadata{Size: 5, Duration: 60}, true
}

func TestReconciler_RejectedMetadataKeepsVideo(t *testing.T) {
	r, db, root := setupReconciler(t, prober.NewPool(nonFiniteProber{}, 1))
	writeTree(t, root, "Movies/nan.mp4", "Movies/ok.mp4")
	ctx := context.Background()

	changes, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1, AddedVideos: 2}, changes)

	var videos []database.Video
	require.NoError(t, db.Query(ctx, "test_list", func(q database.Querier) error {
		var err error
		videos, err = db.Videos.FindAll(ctx, q, database.ListOptions{})
		return err
	}))
	require.Len(t, videos, 2)
	for _, v := range videos {
		switch v.Path {
		case "Movies/nan.mp4":
			assert.Nil(t, v.MetadataID)
		case "Movies/ok.mp4":
			assert.NotNil(t, v.MetadataID)
		default:
			t.Fatalf("unexpected video %s", v.Path)
		}
	}

	changes, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, changes.IsZero())
}

type staticScanner struct {
	root   string
	result ScanResult
}

func (s staticScanner) Root() string { return s.root }

func (s staticScanner) Scan(context.Context) (ScanResult, error) {
	return s.result, nil
}

func pathSet(paths ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out
}

func TestReconciler_SkipsOrphanVideos(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	r.scanner = staticScanner{
		root: root,
		result: ScanResult{
			Catalogs: pathSet("Movies"),
			Videos:   pathSet("Movies/a.mp4", "Ghost/b.mp4"),
		},
	}
	ctx := context.Background()
	skipped := testutil.ToFloat64(metrics.ReconcileOrphansSkipped)

	changes, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 1, AddedVideos: 1}, changes)
	assert.InDelta(t, skipped+1, testutil.ToFloat64(metrics.ReconcileOrphansSkipped), 0)

	var videos []database.Video
	require.NoError(t, db.Query(ctx, "test_list", func(q database.Querier) error {
		var err error
		videos, err = db.Videos.FindAll(ctx, q, database.ListOptions{})
		return err
	}))
	require.Len(t, videos, 1)
	assert.Equal(t, "Movies/a.mp4", videos[0].Path)

	catalogs, _ := countRows(t, db)
	assert.Equal(t, int64(1), catalogs)
}

func TestReconciler_SkipsProbingKnownVideos(t *testing.T) {
	fp := &fakeProber{}
	r, _, root := setupReconciler(t, prober.NewPool(fp, 1))
	writeTree(t, root, "Movies/a.mp4")
	ctx := context.Background()

	_, err := r.Reconcile(ctx)
	require.NoError(t, err)
	_, err = r.Reconcile(ctx)
	require.NoError(t, err)

	assert.Len(t, fp.calls, 1)
}

type failingVideos struct {
	calls int
}

func (f *failingVideos) Create(context.Context, database.Querier, database.NewVideo) (database.Video, error) {
	f.calls++
	return database.Video{}, errors.New("disk full")
}

func TestReconciler_RollsBackWholePass(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	writeTree(t, root, "Movies/a.mp4", "Shows/b.mp4")
	failing := &failingVideos{}
	r.videos = failing

	changes, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, changes.IsZero())
	assert.Equal(t, 1, failing.calls)

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "insert video", dbErr.Op)
	assert.False(t, IsRetryable(err))

	catalogs, videos := countRows(t, db)
	assert.Zero(t, catalogs, "catalog inserts must be rolled back with the failed video")
	assert.Zero(t, videos)

	last, err := db.LastChange(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	// the next pass picks everything up again
	r.videos = db.Videos
	changes, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FileStoreChanges{AddedCatalogs: 2, AddedVideos: 2}, changes)
}

func TestReconciler_ScanFailureWritesNothing(t *testing.T) {
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := NewReconciler(db, NewScanner(filepath.Join(t.TempDir(), "missing"), ScannerConfig{}), nil)

	changes, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, changes.IsZero())
	assert.NotEmpty(t, r.Stats().LastError)
}

func TestReconciler_ConcurrentPasses(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	writeTree(t, root, "Movies/a.mp4", "Movies/b.mp4", "Shows/c.mp4")

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(context.Background())
			if err != nil {
				assert.True(t, IsRetryable(err), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	_, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	catalogs, videos := countRows(t, db)
	assert.Equal(t, int64(2), catalogs)
	assert.Equal(t, int64(3), videos)
}

var catalogReturning = []string{"id", "path", "display_name", "short_desc", "long_desc", "created_at", "updated_at"}

func mockReconciler(t *testing.T) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	root := t.TempDir()
	writeTree(t, root, "Movies/")

	return NewReconciler(database.NewFromDB(sqlDB), NewScanner(root, ScannerConfig{}), nil), mock
}

func TestReconciler_CommitFailure(t *testing.T) {
	r, mock := mockReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, path FROM catalog")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "path"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path FROM video")).
		WillReturnRows(sqlmock.NewRows([]string{"path"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO catalog")).
		WillReturnRows(sqlmock.NewRows(catalogReturning).AddRow(1, "Movies", "Movies", "", "", 1700000000, 1700000000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO app_state")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	changes, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, changes.IsZero())

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "commit", dbErr.Op)
	assert.Contains(t, err.Error(), "disk I/O error")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciler_UniqueViolationIsConflict(t *testing.T) {
	r, mock := mockReconciler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, path FROM catalog")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "path"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path FROM video")).
		WillReturnRows(sqlmock.NewRows([]string{"path"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO catalog")).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	changes, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, changes.IsZero())
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsRetryable(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciler_BeginFailure(t *testing.T) {
	r, mock := mockReconciler(t)
	mock.ExpectBegin().WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})

	_, err := r.Reconcile(context.Background())
	require.Error(t, err)

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "begin", dbErr.Op)
	assert.True(t, IsRetryable(err))
}

func TestDatabaseError_NotConflictForOtherErrors(t *testing.T) {
	err := dbError("insert video", errors.New("no such table: video"))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "insert video")
}

func TestDifference(t *testing.T) {
	have := map[string]struct{}{"c": {}, "a": {}, "b": {}}
	known := map[string]int64{"b": 2}
	assert.Equal(t, []string{"a", "c"}, difference(have, known))
	assert.Nil(t, difference(map[string]struct{}{}, known))
}
