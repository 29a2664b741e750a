package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"moviedb/internal/domain"
	"moviedb/internal/metrics"
)

// ListPending lists suggestions by status. The default is pending; "all"
// returns every suggestion.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	var status domain.SuggestionStatus
	switch s := r.URL.Query().Get("status"); s {
	case "":
		status = domain.SuggestionPending
	case "all":
	case string(domain.SuggestionPending), string(domain.SuggestionApproved), string(domain.SuggestionRejected):
		status = domain.SuggestionStatus(s)
	default:
		h.respondError(w, r, http.StatusBadRequest, "Invalid status")
		return
	}

	pending, err := h.store.ListPending(r.Context(), status)
	if err != nil {
		h.storeError(w, r, err, "list suggestions")
		return
	}
	if pending == nil {
		pending = []*domain.PendingMovie{}
	}
	h.respondJSON(w, r, http.StatusOK, pending)
}

// ApprovePending moves a suggestion into the collection.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["pendingId"]
	movie, err := h.store.Approve(ctx, id)
	if err != nil {
		h.storeError(w, r, err, "approve suggestion")
		return
	}
	metrics.RecordReview("approved")
	h.logger.InfoContext(ctx, "Suggestion approved",
		slog.String("pending_id", id), slog.String("movie_id", movie.ID))
	h.live.PublishMovies(ctx)
	h.live.PublishPendingCount(ctx)
	h.respondJSON(w, r, http.StatusOK, movie)
}

// RejectPending marks a suggestion as rejected.
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["pendingId"]
	pending, err := h.store.Reject(ctx, id)
	if err != nil {
		h.storeError(w, r, err, "reject suggestion")
		return
	}
	metrics.RecordReview("rejected")
	h.logger.InfoContext(ctx, "Suggestion rejected", slog.String("pending_id", id))
	h.live.PublishPendingCount(ctx)
	h.respondJSON(w, r, http.StatusOK, pending)
}

// DeletePending removes a suggestion whatever its status.
func (h *Handler) DeletePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.store.DeletePending(ctx, mux.Vars(r)["pendingId"]); err != nil {
		h.storeError(w, r, err, "delete suggestion")
		return
	}
	h.live.PublishPendingCount(ctx)
	w.WriteHeader(http.StatusNoContent)
}
