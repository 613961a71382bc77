package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

var errBadRequest = errors.New("bad request")

// errorResponse is the body of every error reply.
type errorResponse struct {
	ErrorMsg string `json:"error_msg"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are only logged; the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes {"error_msg": message} with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{ErrorMsg: message})
}

// requestContext applies the configured request timeout.
func (h *Handlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.config.RequestTimeout)
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}

// listOptions reads sort, order, limit and offset from the query string.
// Sort keys outside allowed are rejected.
func listOptions(r *http.Request, allowed map[mediatypes.SortField]bool) (database.ListOptions, error) {
	q := r.URL.Query()
	opts := database.ListOptions{
		Sort:       string(mediatypes.SortByName),
		Descending: mediatypes.ParseSortOrder(q.Get("order")) == mediatypes.SortDesc,
	}

	if s := q.Get("sort"); s != "" {
		if !allowed[mediatypes.SortField(s)] {
			return opts, fmt.Errorf("%w: unsupported sort field %q", errBadRequest, s)
		}
		opts.Sort = s
	}

	var err error
	if opts.Limit, err = nonNegative(q.Get("limit")); err != nil {
		return opts, fmt.Errorf("%w: limit: %v", errBadRequest, err)
	}
	if opts.Offset, err = nonNegative(q.Get("offset")); err != nil {
		return opts, fmt.Errorf("%w: offset: %v", errBadRequest, err)
	}
	return opts, nil
}

func nonNegative(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// writeLookupError maps a lookup failure to 400, 404 or 500.
func writeLookupError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrNotFound):
		writeJSONError(w, what+" not found", http.StatusNotFound)
	default:
		logging.Error("Failed to load %s: %v", what, err)
		writeJSONError(w, "failed to load "+what, http.StatusInternalServerError)
	}
}
