package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
}

func (o *recordingObserver) ObserveOperation(string, string, float64, error) {}

func (o *recordingObserver) ObserveRetryAttempt(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *recordingObserver) ObserveRetrySuccess(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.success++
}

func (o *recordingObserver) ObserveRetryFailure(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *recordingObserver) ObserveRetryDuration(string, string, float64) {}

func (o *recordingObserver) ObserveStaleError(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 500*time.Millisecond, config.MaxBackoff)
	assert.Nil(t, config.VolumeResolver)
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"not exist", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNFSStaleError(tt.err))
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"store":    "/media",
		"database": "/media/db",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/media", "store"},
		{"/media/Movies/a.mp4", "store"},
		{"/media/db/catalog.db", "database"},
		{"/mediax/file", "unknown"},
		{"/other", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, vr.Resolve(tt.path))
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	assert.Equal(t, "unknown", vr.Resolve("/media/file"))
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	info, err := StatWithRetry(path, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size())

	_, err = StatWithRetry(filepath.Join(dir, "missing"), fastRetry())
	assert.True(t, os.IsNotExist(err))
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	f, err := OpenWithRetry(path, fastRetry())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenWithRetry(filepath.Join(dir, "missing"), fastRetry())
	assert.True(t, os.IsNotExist(err))
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	got, err := withRetry("open", "/media/a.mp4", fastRetry(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", syscall.ESTALE
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, obs.stale)
	assert.Equal(t, 2, obs.attempts)
	assert.Equal(t, 1, obs.success)
	assert.Zero(t, obs.failures)
}

func TestWithRetry_GivesUp(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	_, err := withRetry("stat", "/media/a.mp4", fastRetry(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	require.ErrorIs(t, err, syscall.ESTALE)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, obs.failures)
}

func TestWithRetry_NonStaleFailsFast(t *testing.T) {
	calls := 0
	_, err := withRetry("stat", "/media/a.mp4", fastRetry(), func() (int, error) {
		calls++
		return 0, syscall.EACCES
	})

	require.ErrorIs(t, err, syscall.EACCES)
	assert.Equal(t, 1, calls)
}
