package handlers

import (
	"net/http"

	"media-catalog/internal/database"
	"media-catalog/internal/mediatypes"
)

// ListVideos returns every video across all catalogs.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r, mediatypes.VideoSortFields)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var videos []database.Video
	err = h.db.Query(ctx, "list_videos", func(q database.Querier) error {
		videos, err = h.db.Videos.FindAll(ctx, q, opts)
		return err
	})
	if err != nil {
		writeLookupError(w, "videos", err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// GetVideo returns a video together with its probed metadata.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeLookupError(w, "video", err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var details database.VideoDetails
	err = h.db.Query(ctx, "get_video", func(q database.Querier) error {
		details, err = h.db.Videos.FindDetails(ctx, q, id)
		return err
	})
	if err != nil {
		writeLookupError(w, "video", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
