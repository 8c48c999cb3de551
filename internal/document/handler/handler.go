package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sigil/internal/document"
	"sigil/internal/ledger"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

// Service defines the document operations the handler needs.
type Service interface {
	Get(ctx context.Context, docID domain.DocID) (document.Record, error)
	ListRecent(ctx context.Context, limit, offset int) ([]document.Record, error)
	History(ctx context.Context, docID domain.DocID) ([]ledger.Version, error)
	Revoke(ctx context.Context, docID domain.DocID, reason string) (document.Record, error)
}

// Handler wires document lifecycle endpoints to the document service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/documents/{docID}", h.HandleGet)
	r.Get("/documents/{docID}/history", h.HandleHistory)
	r.With(auth.RequireRole(requestcontext.RoleAdmin)).Get("/documents", h.HandleList)
	r.With(auth.RequireRole(requestcontext.RoleAdmin)).Post("/documents/{docID}/revoke", h.HandleRevoke)
}

// HandleGet handles GET /documents/{docID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	docID, err := domain.ParseDocID(chi.URLParam(r, "docID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.Get(r.Context(), docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleHistory handles GET /documents/{docID}/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := domain.ParseDocID(chi.URLParam(r, "docID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	versions, err := h.service.History(ctx, docID)
	if err != nil {
		h.logger.WarnContext(ctx, "history lookup failed",
			"doc_id", docID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{DocID: docID.String(), Versions: versions})
}

// HandleList handles GET /documents requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.service.ListRecent(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

// HandleRevoke handles POST /documents/{docID}/revoke requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := domain.ParseDocID(chi.URLParam(r, "docID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[revokeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "revocation reason required"))
		return
	}

	record, err := h.service.Revoke(ctx, docID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "revocation failed",
			"doc_id", docID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}
