package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Range errors. Handlers map ErrOutsideRoot and ErrInvalidRange to 400,
// ErrNotFound to 404 and ErrUnsatisfiable to 416.
var (
	ErrNotFound      = errors.New("file not found")
	ErrOutsideRoot   = errors.New("path escapes store root")
	ErrSeekPastEnd   = errors.New("seek past end of file")
	ErrShortRead     = errors.New("file ended before requested range")
	ErrInvalidRange  = errors.New("invalid byte range")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// DefaultChunkSize is the largest slice served by one request.
const DefaultChunkSize = 1 << 20

// readStep bounds each read so cancellation is noticed between steps.
const readStep = 64 * 1024

// RangeError reports an unsatisfiable range together with the file size
// needed for the Content-Range header.
type RangeError struct {
	Start int64
	Size  int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range start %d beyond file size %d", e.Start, e.Size)
}

// Is matches ErrUnsatisfiable.
func (e *RangeError) Is(target error) bool {
	return target == ErrUnsatisfiable
}

// Range is a parsed Range header. A nil *Range asks for the file from the
// beginning.
type Range struct {
	Start int64
	// End is the last byte, inclusive, or -1 when open-ended.
	End int64
	// Suffix, when positive, asks for the final Suffix bytes.
	Suffix int64
}

// Chunk is a slice of a file read for one response.
type Chunk struct {
	Data  []byte
	Start int64
	End   int64 // inclusive
	Size  int64 // total file size
}

// Complete reports whether the chunk is the whole file.
func (c *Chunk) Complete() bool {
	return c.Start == 0 && c.End == c.Size-1
}

// Server reads byte ranges of files below the store root. Every read opens
// its own handle, so concurrent requests share nothing.
type Server struct {
	root      string
	chunkSize int64
	retry     filesystem.RetryConfig
}

// NewServer creates a range server for root. chunkSize <= 0 selects
// DefaultChunkSize.
func NewServer(root string, chunkSize int64) *Server {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Server{
		root:      root,
		chunkSize: chunkSize,
		retry:     filesystem.DefaultRetryConfig(),
	}
}

// ChunkSize returns the largest number of bytes Fetch returns.
func (s *Server) ChunkSize() int64 {
	return s.chunkSize
}

// Resolve maps a stored path such as "Movies/a.mp4" to a file below the
// root. Paths that are absolute, contain "..", or lead through a symbolic
// link to somewhere outside the root fail with ErrOutsideRoot.
func (s *Server) Resolve(logical string) (string, error) {
	rel := filepath.FromSlash(logical)
	if logical == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, logical)
	}

	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fmt.Errorf("cannot resolve store root: %w", err)
	}

	abs := filepath.Join(root, rel)
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, logical)
		}
		return "", err
	}
	if inside, err := filepath.Rel(root, target); err != nil || !filepath.IsLocal(inside) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, logical)
	}
	return target, nil
}

// ReadRange returns bytes start through end, inclusive, of the stored file.
// The read checks ctx between steps so a closed connection stops it early.
func (s *Server) ReadRange(ctx context.Context, logical string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
	}

	path, err := s.Resolve(logical)
	if err != nil {
		return nil, err
	}
	f, size, err := s.open(path, logical)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return s.readWithin(ctx, f, logical, size, start, end)
}

// Fetch resolves rng against the file size and reads the result, capped at
// the chunk size. A nil rng reads from the start of the file.
func (s *Server) Fetch(ctx context.Context, logical string, rng *Range) (*Chunk, error) {
	path, err := s.Resolve(logical)
	if err != nil {
		return nil, err
	}
	f, size, err := s.open(path, logical)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	start, end, err := s.bounds(rng, size)
	if err != nil {
		return nil, err
	}
	if end < start {
		// empty file
		return &Chunk{Data: []byte{}, Start: 0, End: -1, Size: size}, nil
	}

	data, err := s.readWithin(ctx, f, logical, size, start, end)
	if err != nil {
		return nil, err
	}
	return &Chunk{Data: data, Start: start, End: end, Size: size}, nil
}

// bounds turns rng into inclusive offsets within size.
func (s *Server) bounds(rng *Range, size int64) (int64, int64, error) {
	var start, end int64
	switch {
	case rng == nil:
		start, end = 0, size-1
	case rng.Suffix > 0:
		start, end = max(size-rng.Suffix, 0), size-1
		if size == 0 {
			return 0, 0, &RangeError{Start: 0, Size: size}
		}
	default:
		if rng.Start >= size {
			return 0, 0, &RangeError{Start: rng.Start, Size: size}
		}
		start, end = rng.Start, rng.End
		if end < 0 || end > size-1 {
			end = size - 1
		}
	}
	if end-start+1 > s.chunkSize {
		end = start + s.chunkSize - 1
	}
	return start, end, nil
}

func (s *Server) open(path, logical string) (*os.File, int64, error) {
	f, err := filesystem.OpenWithRetry(path, s.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, logical)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", logical, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", logical, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrNotFound, logical)
	}
	return f, info.Size(), nil
}

// readWithin reads start through end after checking both lie inside a file
// of the given size.
func (s *Server) readWithin(ctx context.Context, f *os.File, logical string, size, start, end int64) ([]byte, error) {
	if start >= size {
		return nil, fmt.Errorf("%w: offset %d, size %d", ErrSeekPastEnd, start, size)
	}
	if end >= size {
		return nil, fmt.Errorf("%w: %s: wanted through byte %d of %d", ErrShortRead, logical, end, size)
	}
	return s.read(ctx, f, logical, start, end)
}

func (s *Server) read(ctx context.Context, f *os.File, logical string, start, end int64) ([]byte, error) {
	began := time.Now()
	defer func() {
		metrics.StreamReadDuration.Observe(time.Since(began).Seconds())
	}()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek %s to %d: %w", logical, start, err)
	}

	buf := make([]byte, end-start+1)
	for off := 0; off < len(buf); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := min(off+readStep, len(buf))
		n, err := io.ReadFull(f, buf[off:next])
		off += n
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s: got %d of %d bytes", ErrShortRead, logical, off, len(buf))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", logical, err)
		}
	}

	logging.Debug("Read %s bytes %d-%d", logical, start, end)
	return buf, nil
}

// ParseRange parses a Range header value. Only the first range of a
// multi-range request is used. An empty header returns nil.
func ParseRange(header string) (*Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}
	first, _, _ := strings.Cut(spec, ",")
	first = strings.TrimSpace(first)

	from, to, ok := strings.Cut(first, "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad suffix length in %q", ErrInvalidRange, header)
		}
		return &Range{Start: -1, End: -1, Suffix: n}, nil
	}

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}
	if to == "" {
		return &Range{Start: start, End: -1}, nil
	}

	end, err := strconv.ParseInt(to, 10, 64)
	if err != nil || end < start {
		return nil, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
	}
	return &Range{Start: start, End: end}, nil
}

// ContentRange formats a Content-Range header value.
func ContentRange(start, end, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", start, end, size)
}

// UnsatisfiedRange formats the Content-Range value sent with 416.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}
