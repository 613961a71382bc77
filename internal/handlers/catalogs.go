package handlers

import (
	"net/http"

	"media-catalog/internal/database"
	"media-catalog/internal/mediatypes"
)

// ListCatalogs returns every catalog, sorted by the sort and order query
// parameters and optionally paged with limit and offset.
func (h *Handlers) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r, mediatypes.CatalogSortFields)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var catalogs []database.Catalog
	err = h.db.Query(ctx, "list_catalogs", func(q database.Querier) error {
		catalogs, err = h.db.Catalogs.FindAll(ctx, q, opts)
		return err
	})
	if err != nil {
		writeLookupError(w, "catalogs", err)
		return
	}
	writeJSON(w, http.StatusOK, catalogs)
}

// GetCatalog returns one catalog by id.
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeLookupError(w, "catalog", err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var catalog database.Catalog
	err = h.db.Query(ctx, "get_catalog", func(q database.Querier) error {
		catalog, err = h.db.Catalogs.Find(ctx, q, id)
		return err
	})
	if err != nil {
		writeLookupError(w, "catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// ListCatalogVideos returns the videos of one catalog. An unknown catalog
// is a 404 rather than an empty list.
func (h *Handlers) ListCatalogVideos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeLookupError(w, "catalog", err)
		return
	}
	opts, err := listOptions(r, mediatypes.VideoSortFields)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var videos []database.Video
	err = h.db.Query(ctx, "list_catalog_videos", func(q database.Querier) error {
		if _, err := h.db.Catalogs.Find(ctx, q, id); err != nil {
			return err
		}
		videos, err = h.db.Videos.FindByCatalogID(ctx, q, id, opts)
		return err
	})
	if err != nil {
		writeLookupError(w, "catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}
