package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

var (
	// ErrWriteTimeout means the client stopped accepting data.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the body was sent.
	ErrClientGone = errors.New("client disconnected")
)

// DefaultWriteTimeout bounds each write of a chunk to the client.
const DefaultWriteTimeout = 30 * time.Second

// WriteChunk sends data to w in readStep slices, refreshing the connection
// write deadline before each slice and flushing after it. It returns the
// number of bytes written.
func WriteChunk(ctx context.Context, w http.ResponseWriter, data []byte, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	rc := http.NewResponseController(w)

	var written int64
	for len(data) > 0 {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}

		// not every ResponseWriter supports deadlines; httptest does not
		if err := rc.SetWriteDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Failed to set write deadline: %v", err)
		}

		n := min(readStep, len(data))
		m, err := w.Write(data[:n])
		written += int64(m)
		metrics.StreamBytesTotal.Add(float64(m))
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return written, ErrWriteTimeout
			}
			if ctx.Err() != nil {
				return written, ErrClientGone
			}
			return written, err
		}
		data = data[n:]

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Failed to flush stream: %v", err)
		}
	}

	_ = rc.SetWriteDeadline(time.Time{})
	return written, nil
}
