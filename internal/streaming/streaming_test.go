package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func makeFile(t *testing.T, root, rel string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestReadRange(t *testing.T) {
	root := t.TempDir()
	data := makeFile(t, root, "Movies/a.mp4", 500)
	srv := NewServer(root, 0)

	got, err := srv.ReadRange(context.Background(), "Movies/a.mp4", 0, 99)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}
	if !bytes.Equal(got, data[:100]) {
		t.Error("ReadRange returned wrong bytes")
	}

	got, err = srv.ReadRange(context.Background(), "Movies/a.mp4", 499, 499)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if len(got) != 1 || got[0] != data[499] {
		t.Errorf("expected last byte, got %v", got)
	}
}

func TestReadRangeLargerThanReadStep(t *testing.T) {
	root := t.TempDir()
	data := makeFile(t, root, "Movies/big.mkv", 3*readStep+17)
	srv := NewServer(root, 0)

	got, err := srv.ReadRange(context.Background(), "Movies/big.mkv", 10, int64(len(data)-1))
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if !bytes.Equal(got, data[10:]) {
		t.Error("multi-step read returned wrong bytes")
	}
}

func TestReadRangeErrors(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/a.mp4", 500)
	if err := os.Mkdir(filepath.Join(root, "Movies", "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(root, 0)

	tests := []struct {
		name       string
		path       string
		start, end int64
		want       error
	}{
		{"seek past end", "Movies/a.mp4", 500, 600, ErrSeekPastEnd},
		{"end past eof", "Movies/a.mp4", 400, 600, ErrShortRead},
		{"reversed range", "Movies/a.mp4", 10, 5, ErrInvalidRange},
		{"negative start", "Movies/a.mp4", -1, 5, ErrInvalidRange},
		{"missing file", "Movies/nope.mp4", 0, 1, ErrNotFound},
		{"directory", "Movies/dir", 0, 1, ErrNotFound},
		{"parent traversal", "../etc/passwd", 0, 1, ErrOutsideRoot},
		{"absolute path", "/etc/passwd", 0, 1, ErrOutsideRoot},
		{"empty path", "", 0, 1, ErrOutsideRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.ReadRange(context.Background(), tt.path, tt.start, tt.end)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadRange() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadRangeCancelled(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/a.mp4", 500)
	srv := NewServer(root, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := srv.ReadRange(ctx, "Movies/a.mp4", 0, 99); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	outside := t.TempDir()
	makeFile(t, outside, "secret.mp4", 10)

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "Movies"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.mp4"), filepath.Join(root, "Movies", "link.mp4")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := NewServer(root, 0).Resolve("Movies/link.mp4")
	if !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Resolve() error = %v, want ErrOutsideRoot", err)
	}
}

func TestFetch(t *testing.T) {
	root := t.TempDir()
	data := makeFile(t, root, "Movies/a.mp4", 500)
	srv := NewServer(root, 200)

	tests := []struct {
		name          string
		rng           *Range
		wantStart     int64
		wantEnd       int64
		wantComplete  bool
		wantChunkSize int
	}{
		{"no range is capped by chunk size", nil, 0, 199, false, 200},
		{"explicit range", &Range{Start: 0, End: 99}, 0, 99, false, 100},
		{"end clamped to file size", &Range{Start: 450, End: 10000}, 450, 499, false, 50},
		{"open ended", &Range{Start: 400, End: -1}, 400, 499, false, 100},
		{"open ended capped", &Range{Start: 100, End: -1}, 100, 299, false, 200},
		{"suffix", &Range{Start: -1, End: -1, Suffix: 20}, 480, 499, false, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := srv.Fetch(context.Background(), "Movies/a.mp4", tt.rng)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if chunk.Start != tt.wantStart || chunk.End != tt.wantEnd {
				t.Errorf("got %d-%d, want %d-%d", chunk.Start, chunk.End, tt.wantStart, tt.wantEnd)
			}
			if chunk.Size != 500 {
				t.Errorf("Size = %d, want 500", chunk.Size)
			}
			if chunk.Complete() != tt.wantComplete {
				t.Errorf("Complete() = %v, want %v", chunk.Complete(), tt.wantComplete)
			}
			if len(chunk.Data) != tt.wantChunkSize {
				t.Fatalf("len(Data) = %d, want %d", len(chunk.Data), tt.wantChunkSize)
			}
			if !bytes.Equal(chunk.Data, data[chunk.Start:chunk.End+1]) {
				t.Error("Fetch returned wrong bytes")
			}
		})
	}
}

func TestFetchWholeSmallFile(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/small.mp4", 50)
	srv := NewServer(root, 0)

	chunk, err := srv.Fetch(context.Background(), "Movies/small.mp4", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !chunk.Complete() {
		t.Errorf("expected complete chunk, got %d-%d/%d", chunk.Start, chunk.End, chunk.Size)
	}

	chunk, err = srv.Fetch(context.Background(), "Movies/small.mp4", &Range{Start: 0, End: -1})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !chunk.Complete() {
		t.Error("bytes=0- over the whole file should be complete")
	}
}

func TestFetchEmptyFile(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/empty.mp4", 0)
	srv := NewServer(root, 0)

	chunk, err := srv.Fetch(context.Background(), "Movies/empty.mp4", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(chunk.Data) != 0 || !chunk.Complete() {
		t.Errorf("unexpected chunk for empty file: %+v", chunk)
	}

	_, err = srv.Fetch(context.Background(), "Movies/empty.mp4", &Range{Start: 0, End: -1})
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Errorf("expected ErrUnsatisfiable, got %v", err)
	}
}

func TestFetchUnsatisfiable(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/a.mp4", 500)

	_, err := NewServer(root, 0).Fetch(context.Background(), "Movies/a.mp4", &Range{Start: 500, End: -1})
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("expected ErrUnsatisfiable, got %v", err)
	}
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) || rangeErr.Size != 500 {
		t.Errorf("expected RangeError with size 500, got %v", err)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		want    *Range
		wantErr bool
	}{
		{"", nil, false},
		{"bytes=0-99", &Range{Start: 0, End: 99}, false},
		{"bytes=100-", &Range{Start: 100, End: -1}, false},
		{"bytes=-500", &Range{Start: -1, End: -1, Suffix: 500}, false},
		{"bytes=0-1, 5-10", &Range{Start: 0, End: 1}, false},
		{" bytes= 3 - 4 ", &Range{Start: 3, End: 4}, false},
		{"items=0-1", nil, true},
		{"bytes=abc-", nil, true},
		{"bytes=10-5", nil, true},
		{"bytes=-0", nil, true},
		{"bytes=5", nil, true},
		{"bytes=-", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseRange(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRange(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidRange) {
					t.Errorf("expected ErrInvalidRange, got %v", err)
				}
				return
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

func TestContentRangeHeaders(t *testing.T) {
	if got := ContentRange(0, 99, 500); got != "bytes 0-99/500" {
		t.Errorf("ContentRange() = %q", got)
	}
	if got := UnsatisfiedRange(500); got != "bytes */500" {
		t.Errorf("UnsatisfiedRange() = %q", got)
	}
}

func TestWriteChunk(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 2*readStep+5)
	rec := httptest.NewRecorder()

	n, err := WriteChunk(context.Background(), rec, data, 0)
	if err != nil {
		t.Fatalf("WriteChunk() error = %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("wrote %d bytes, want %d", n, len(data))
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("body does not match")
	}
	if !rec.Flushed {
		t.Error("expected the recorder to be flushed")
	}
}

func TestWriteChunkClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	n, err := WriteChunk(ctx, rec, []byte("data"), 0)
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("expected ErrClientGone, got %v", err)
	}
	if n != 0 || rec.Body.Len() != 0 {
		t.Error("nothing should be written after the client left")
	}
}

func TestReadWithinStaleSize(t *testing.T) {
	root := t.TempDir()
	makeFile(t, root, "Movies/a.mp4", 100)
	srv := NewServer(root, 0)

	f, err := os.Open(filepath.Join(root, "Movies", "a.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// the file shrank after its size was taken
	if _, err := srv.readWithin(context.Background(), f, "Movies/a.mp4", 200, 50, 150); !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
	if _, err := srv.readWithin(context.Background(), f, "Movies/a.mp4", 100, 100, 120); !errors.Is(err, ErrSeekPastEnd) {
		t.Errorf("expected ErrSeekPastEnd, got %v", err)
	}
	if _, err := srv.readWithin(context.Background(), f, "Movies/a.mp4", 100, 90, 120); !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}
