/*
Package streaming serves byte ranges of stored videos.

# Reading

Server resolves a stored path ("Movies/a.mp4") below the store root and
reads an inclusive byte range from its own file handle:

	srv := streaming.NewServer("/media", streaming.DefaultChunkSize)
	data, err := srv.ReadRange(ctx, "Movies/a.mp4", 0, 99)

Paths that are absolute, use "..", or reach outside the root through a
symbolic link fail with ErrOutsideRoot. Missing files and directories fail
with ErrNotFound.

# Range requests

Fetch is the HTTP-facing form. It takes a parsed Range header, resolves it
against the file size and caps the result at the configured chunk size, so
a request for "bytes=0-" returns at most one chunk:

	rng, err := streaming.ParseRange(r.Header.Get("Range"))
	chunk, err := srv.Fetch(ctx, video.Path, rng)
	if chunk.Complete() {
		// whole file: 200
	} else {
		// partial: 206 with streaming.ContentRange(chunk.Start, chunk.End, chunk.Size)
	}

A start at or beyond the end of the file returns a *RangeError matching
ErrUnsatisfiable; the handler answers 416 with UnsatisfiedRange(size).

# Writing

WriteChunk sends the data in 64 KiB slices with a per-slice write deadline,
so a client that stops reading is dropped with ErrWriteTimeout instead of
holding the connection open.
*/
package streaming
