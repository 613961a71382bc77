package handlers

import (
	"context"
	"errors"
	"net/http"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
)

// Scan runs one reconciliation pass and replies with the rows it added.
// The pass finishes even if the client disconnects, since abandoning it
// would only roll the work back.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	changes, err := h.reconciler.Reconcile(context.WithoutCancel(r.Context()))
	if err != nil {
		var dbErr *indexer.DatabaseError
		switch {
		case indexer.IsRetryable(err):
			writeJSONError(w, "another reconciliation is in progress, retry later", http.StatusConflict)
		case errors.As(err, &dbErr):
			writeJSONError(w, "database error: "+dbErr.Error(), http.StatusInternalServerError)
		default:
			logging.Error("Scan request failed: %v", err)
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, changes)
}
