package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/document"
	dochandler "sigil/internal/document/handler"
	"sigil/internal/issuance"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

// maxUploadBytes bounds artifact uploads.
const maxUploadBytes = 25 << 20

// Service defines the issuance operation the handler needs.
type Service interface {
	Issue(ctx context.Context, req issuance.Request) (issuance.Result, error)
}

// Handler wires the issuance endpoint to the pipeline.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the issuance endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(requestcontext.RoleIssuer)).Post("/documents", h.HandleIssue)
}

// IssueResponse reports what the pipeline did with the submission.
type IssueResponse struct {
	Document      dochandler.RecordResponse `json:"document"`
	Anchored      bool                      `json:"anchored"`
	Reissued      bool                      `json:"reissued,omitempty"`
	AnchorRetried bool                      `json:"anchor_retried,omitempty"`
}

// HandleIssue handles POST /documents multipart submissions. The artifact
// goes in the "file" part; doc_id, title, reason, and meta ride as form
// fields.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	principal, _ := requestcontext.PrincipalFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "artifact file part required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "read artifact file"))
		return
	}

	meta, err := parseMeta(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req := issuance.Request{
		DocID:    domain.DocID(r.FormValue("doc_id")),
		IssuerID: principal.ID,
		Title:    r.FormValue("title"),
		Reason:   r.FormValue("reason"),
		Meta:     meta,
		FileName: header.Filename,
		Bytes:    data,
	}

	result, err := h.service.Issue(ctx, req)
	if err != nil && !errors.Is(err, issuance.ErrNotAnchored) {
		h.logger.ErrorContext(ctx, "issuance failed",
			"doc_id", req.DocID,
			"issuer_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := IssueResponse{
		Document:      dochandler.FromRecord(result.Record),
		Anchored:      result.Anchored,
		Reissued:      result.Reissued,
		AnchorRetried: result.AnchorRetried,
	}

	// Persisted but unanchored: the submission is accepted and the same
	// request can be replayed to complete the anchor.
	status := http.StatusCreated
	if !result.Anchored {
		status = http.StatusAccepted
	}

	h.logger.InfoContext(ctx, "issuance handled",
		"doc_id", result.Record.DocID,
		"issuer_id", principal.ID,
		"anchored", result.Anchored,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, status, resp)
}

// parseMeta reads either a full "meta" JSON field or a bare "kind" field.
func parseMeta(r *http.Request) (document.Meta, error) {
	if raw := r.FormValue("meta"); raw != "" {
		var meta document.Meta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return document.Meta{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed meta field")
		}
		return meta, nil
	}
	return document.Meta{Kind: document.Kind(r.FormValue("kind"))}, nil
}
