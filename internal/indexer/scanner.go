package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// ScanResult holds the relative paths found on disk.
type ScanResult struct {
	Catalogs map[string]struct{}
	Videos   map[string]struct{}
}

// ScannerConfig configures the tree scanner.
type ScannerConfig struct {
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// Scanner walks the store root. It only reads directory state.
type Scanner struct {
	root   string
	config ScannerConfig
}

// NewScanner creates a scanner for root.
func NewScanner(root string, config ScannerConfig) *Scanner {
	return &Scanner{root: root, config: config}
}

// Root returns the store root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the store and partitions its entries into catalogs and videos.
// Symbolic links below the root are never followed. Entries that cannot be
// read are logged and left out; only an unreadable root or a cancelled
// context fails the scan.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	result := ScanResult{
		Catalogs: make(map[string]struct{}),
		Videos:   make(map[string]struct{}),
	}

	info, err := filesystem.StatWithRetry(s.root, filesystem.DefaultRetryConfig())
	if err != nil {
		return result, fmt.Errorf("cannot read store root: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("store root %s is not a directory", s.root)
	}

	// The root itself may be a link (a bind-mounted library); WalkDir would
	// not descend into it.
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return result, fmt.Errorf("cannot resolve store root: %w", err)
	}

	var ignored, unclassifiable, failed int
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logging.Warn("Error accessing path %s: %v", path, walkErr)
			metrics.ScanEntriesTotal.WithLabelValues("error").Inc()
			failed++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		if s.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			logging.Error("Cannot relativize %s: %v", path, err)
			failed++
			return nil
		}

		c := Classify(rel, d.IsDir())
		metrics.ScanEntriesTotal.WithLabelValues(c.Kind.String()).Inc()

		switch c.Kind {
		case KindCatalog:
			result.Catalogs[c.Path] = struct{}{}
		case KindVideo:
			result.Videos[c.Path] = struct{}{}
			if !mediatypes.IsKnownVideo(c.Path) {
				logging.Debug("Cataloging %s with an unrecognized extension", c.Path)
			}
		case KindIgnored:
			logging.Warn("Ignoring file in store root: %s", c.Path)
			ignored++
		case KindUnclassifiable:
			unclassifiable++
			if d.IsDir() {
				// nested directories are descended into; their files are videos
				logging.Debug("Descending into %s (%s)", c.Path, c.Reason)
			} else {
				logging.Error("Unclassifiable entry %s: %s", c.Path, c.Reason)
			}
		}
		return nil
	})

	filesystem.ObserveOperation(s.root, "readdir", start, err)
	if err != nil {
		return result, fmt.Errorf("scan of %s failed: %w", s.root, err)
	}

	logging.Debug("Scan complete: %d catalogs, %d videos, %d ignored, %d unclassifiable, %d errors in %v",
		len(result.Catalogs), len(result.Videos), ignored, unclassifiable, failed, time.Since(start))
	return result, nil
}
