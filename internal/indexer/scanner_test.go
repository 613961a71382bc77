package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (and their parent directories) under root.
// Entries ending in "/" are created as empty directories.
func writeTree(t testing.TB, root string, entries ...string) {
	t.Helper()
	for _, e := range entries {
		full := filepath.Join(root, filepath.FromSlash(e))
		if e[len(e)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("video"), 0o644))
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"Movies/Inception.mp4",
		"Movies/Extras/Making Of.mkv",
		"Shows/",
		"loose.mp4",
		".trash/old.mp4",
		"Movies/.hidden.mp4",
	)

	result, err := NewScanner(root, ScannerConfig{SkipHidden: true}).Scan(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Movies", "Shows"}, keys(result.Catalogs))
	assert.ElementsMatch(t, []string{"Movies/Inception.mp4", "Movies/Extras/Making Of.mkv"}, keys(result.Videos))
}

func TestScanner_IncludesHiddenWhenConfigured(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, ".trash/old.mp4", "Movies/.hidden.mp4")

	result, err := NewScanner(root, ScannerConfig{}).Scan(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{".trash", "Movies"}, keys(result.Catalogs))
	assert.ElementsMatch(t, []string{".trash/old.mp4", "Movies/.hidden.mp4"}, keys(result.Videos))
}

func TestScanner_EmptyRoot(t *testing.T) {
	result, err := NewScanner(t.TempDir(), ScannerConfig{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Catalogs)
	assert.Empty(t, result.Videos)
}

func TestScanner_MissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "gone"), ScannerConfig{}).Scan(context.Background())
	require.Error(t, err)
}

func TestScanner_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewScanner(file, ScannerConfig{}).Scan(context.Background())
	require.Error(t, err)
}

func TestScanner_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeTree(t, target, "Movies/a.mp4")

	link := filepath.Join(t.TempDir(), "media")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	result, err := NewScanner(link, ScannerConfig{}).Scan(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Movies"}, keys(result.Catalogs))
	assert.ElementsMatch(t, []string{"Movies/a.mp4"}, keys(result.Videos))
}

func TestScanner_DoesNotFollowNestedSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, "secret/x.mp4")

	root := t.TempDir()
	writeTree(t, root, "Movies/")
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "Movies", "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	result, err := NewScanner(root, ScannerConfig{}).Scan(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, result.Videos, "Movies/linked/x.mp4")
}

func TestScanner_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "Movies/a.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(root, ScannerConfig{}).Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
