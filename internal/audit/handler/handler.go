package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/audit"
	"sigil/internal/audit/store"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

func New(store store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(requestcontext.RoleAdmin)).Get("/audit", h.HandleList)
}

type eventResponse struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	ActorID     string         `json:"actor_id"`
	Role        string         `json:"role,omitempty"`
	TargetDocID string         `json:"target_doc_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// HandleList handles GET /audit. Optional actor_id and doc_id filters narrow
// the listing; at most one applies.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	actorID := query.Get("actor_id")
	docID := query.Get("doc_id")
	if actorID != "" && docID != "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "filter by actor_id or doc_id, not both"))
		return
	}

	var (
		events []audit.Event
		err    error
	)
	switch {
	case actorID != "":
		events, err = h.store.ListByActor(ctx, actorID, limit, offset)
	case docID != "":
		events, err = h.store.ListByDoc(ctx, docID, limit, offset)
	default:
		events, err = h.store.ListRecent(ctx, limit, offset)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:          event.ID.String(),
			Action:      string(event.Action),
			ActorID:     event.ActorID,
			Role:        event.Role,
			TargetDocID: event.TargetDocID,
			Details:     event.Details,
			Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}
