package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/streaming"
)

// StreamVideo serves one chunk of a stored video. Requests without a Range
// header get the first chunk; the reply is 200 only when that chunk is the
// whole file and 206 otherwise.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeLookupError(w, "video", err)
		return
	}

	if h.config.Memory != nil && h.config.Memory.UnderPressure() {
		metrics.MemoryShedRequests.Inc()
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, "server is low on memory, retry shortly", http.StatusServiceUnavailable)
		return
	}

	rng, err := streaming.ParseRange(r.Header.Get("Range"))
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	var video database.Video
	err = h.db.Query(ctx, "get_video", func(q database.Querier) error {
		video, err = h.db.Videos.Find(ctx, q, id)
		return err
	})
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.StreamRequestsTotal.WithLabelValues("not_found").Inc()
		}
		writeLookupError(w, "video", err)
		return
	}

	chunk, err := h.streams.Fetch(r.Context(), video.Path, rng)
	if err != nil {
		h.writeStreamError(w, video.Path, err)
		return
	}

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", mediatypes.ContentType(video.Path))
	header.Set("Content-Length", strconv.Itoa(len(chunk.Data)))

	status := http.StatusOK
	outcome := "full"
	if !chunk.Complete() {
		status = http.StatusPartialContent
		outcome = "partial"
		header.Set("Content-Range", streaming.ContentRange(chunk.Start, chunk.End, chunk.Size))
	}
	metrics.StreamRequestsTotal.WithLabelValues(outcome).Inc()
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := streaming.WriteChunk(r.Context(), w, chunk.Data, h.config.WriteTimeout); err != nil {
		logging.Debug("Stream of %s bytes %d-%d ended early: %v", video.Path, chunk.Start, chunk.End, err)
	}
}

func (h *Handlers) writeStreamError(w http.ResponseWriter, path string, err error) {
	var rangeErr *streaming.RangeError
	switch {
	case errors.As(err, &rangeErr):
		metrics.StreamRequestsTotal.WithLabelValues("unsatisfiable").Inc()
		w.Header().Set("Content-Range", streaming.UnsatisfiedRange(rangeErr.Size))
		writeJSONError(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
	case errors.Is(err, streaming.ErrNotFound):
		metrics.StreamRequestsTotal.WithLabelValues("not_found").Inc()
		writeJSONError(w, "video file not found", http.StatusNotFound)
	case errors.Is(err, streaming.ErrOutsideRoot), errors.Is(err, streaming.ErrInvalidRange):
		metrics.StreamRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		metrics.StreamRequestsTotal.WithLabelValues("error").Inc()
		logging.Error("Failed to read %s: %v", path, err)
		writeJSONError(w, "failed to read video", http.StatusInternalServerError)
	}
}
