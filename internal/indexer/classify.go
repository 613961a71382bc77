package indexer

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind is the outcome of classifying one store entry.
type Kind int

const (
	// KindUnclassifiable covers every shape that is neither a catalog, a video nor an ignored file.
	KindUnclassifiable Kind = iota
	// KindCatalog is a directory directly under the store root.
	KindCatalog
	// KindVideo is a file at depth two or more.
	KindVideo
	// KindIgnored is a file directly under the store root.
	KindIgnored
)

func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "catalog"
	case KindVideo:
		return "video"
	case KindIgnored:
		return "ignored"
	default:
		return "unclassifiable"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Kind Kind
	// Path is the cleaned slash-separated relative path.
	Path string
	// Catalog is the owning catalog path of a video, or the catalog itself.
	Catalog string
	// Reason explains an unclassifiable result.
	Reason string
}

// Classify maps a path relative to the store root to exactly one Kind.
// Depth is the number of path components; extensions are not considered.
func Classify(relPath string, isDir bool) Classification {
	p := filepath.ToSlash(relPath)
	if p == "" {
		return Classification{Kind: KindUnclassifiable, Reason: "empty path"}
	}
	if path.IsAbs(p) || filepath.IsAbs(relPath) {
		return Classification{Kind: KindUnclassifiable, Path: p, Reason: "absolute path"}
	}

	p = path.Clean(p)
	if p == "." {
		return Classification{Kind: KindUnclassifiable, Path: p, Reason: "store root"}
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return Classification{Kind: KindUnclassifiable, Path: p, Reason: "outside store root"}
	}

	parts := strings.Split(p, "/")
	depth := len(parts)

	switch {
	case isDir && depth == 1:
		return Classification{Kind: KindCatalog, Path: p, Catalog: p}
	case !isDir && depth == 1:
		return Classification{Kind: KindIgnored, Path: p}
	case !isDir:
		return Classification{Kind: KindVideo, Path: p, Catalog: parts[0]}
	default:
		return Classification{Kind: KindUnclassifiable, Path: p, Catalog: parts[0], Reason: "nested directory"}
	}
}
