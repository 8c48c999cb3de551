package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/verification"
	"sigil/internal/verification/store"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

const maxUploadBytes = 25 << 20

// Service defines the verification operation the handler needs.
type Service interface {
	Verify(ctx context.Context, req verification.Request) (verification.Result, error)
}

// Handler wires verification endpoints to the engine.
type Handler struct {
	service Service
	events  store.Store
	logger  *slog.Logger
}

func New(service Service, events store.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, events: events, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
	r.With(auth.RequireRole(requestcontext.RoleAdmin)).Get("/documents/{docID}/verifications", h.HandleListEvents)
}

type verifyRequest struct {
	DocID  string `json:"doc_id"`
	Digest string `json:"digest,omitempty"`
}

// HandleVerify handles POST /verify. Multipart submissions carry the
// artifact bytes under "file" with the doc id as a form field; JSON
// submissions carry a doc id and an optional digest.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	principal, _ := requestcontext.PrincipalFrom(ctx)

	req, err := h.decodeRequest(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.RequesterID = principal.ID

	result, err := h.service.Verify(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed to run",
			"doc_id", req.DocID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification handled",
		"doc_id", req.DocID,
		"verdict", result.Verdict,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (verification.Request, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return verification.Request{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart form")
		}
		docID, err := domain.ParseDocID(r.FormValue("doc_id"))
		if err != nil {
			return verification.Request{}, err
		}
		req := verification.Request{DocID: docID}

		file, _, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				return verification.Request{}, dErrors.Wrap(readErr, dErrors.CodeBadRequest, "read artifact file")
			}
			req.Bytes = data
		}
		return req, nil
	}

	payload, err := httputil.Decode[verifyRequest](r)
	if err != nil {
		return verification.Request{}, err
	}
	docID, err := domain.ParseDocID(payload.DocID)
	if err != nil {
		return verification.Request{}, err
	}
	req := verification.Request{DocID: docID}
	if payload.Digest != "" {
		digest, err := domain.ParseDigest(payload.Digest)
		if err != nil {
			return verification.Request{}, err
		}
		req.Digest = digest
	}
	return req, nil
}

type eventResponse struct {
	ID             string   `json:"id"`
	DocID          string   `json:"doc_id"`
	RequesterID    string   `json:"requester_id,omitempty"`
	Verdict        string   `json:"verdict"`
	Reasons        []string `json:"reasons"`
	HashMatch      bool     `json:"hash_match"`
	IssuerVerified bool     `json:"issuer_verified"`
	Timestamp      string   `json:"timestamp"`
}

// HandleListEvents handles GET /documents/{docID}/verifications.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	docID, err := domain.ParseDocID(chi.URLParam(r, "docID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.events.ListByDoc(r.Context(), docID, limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list verification events"))
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		reasons := make([]string, len(event.Reasons))
		for i, code := range event.Reasons {
			reasons[i] = string(code)
		}
		out = append(out, eventResponse{
			ID:             event.ID.String(),
			DocID:          event.DocID.String(),
			RequesterID:    event.RequesterID,
			Verdict:        string(event.Verdict),
			Reasons:        reasons,
			HashMatch:      event.HashMatch,
			IssuerVerified: event.IssuerVerified,
			Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"verifications": out})
}
