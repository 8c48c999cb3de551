// Package admin exposes the privileged issuer-registry operations. These are
// ledger writes outside the verification hot path, gated on the admin role.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sigil/internal/audit"
	"sigil/internal/ledger"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

// Handler wires issuer registry endpoints to the ledger adapter.
type Handler struct {
	ledger ledger.Client
	audit  *audit.Publisher
	logger *slog.Logger
}

func New(ledgerClient ledger.Client, auditPublisher *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledgerClient, audit: auditPublisher, logger: logger}
}

// Register mounts issuer registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	admin := r.With(auth.RequireRole(requestcontext.RoleAdmin))
	admin.Post("/issuers", h.HandleAdd)
	admin.Delete("/issuers/{address}", h.HandleRemove)
	admin.Get("/issuers/{address}", h.HandleStatus)
}

type addIssuerRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type issuerReceiptResponse struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	TxRef   string `json:"tx_ref"`
	Chain   string `json:"chain"`
}

// HandleAdd handles POST /issuers.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[addIssuerRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := domain.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "issuer name required"))
		return
	}

	receipt, err := h.ledger.AddIssuer(ctx, identity, req.Name)
	if err != nil {
		httputil.WriteError(w, h.translateLedgerErr(ctx, err, "add issuer"))
		return
	}
	if err := h.emit(ctx, audit.ActionIssuerAdded, identity, req.Name); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issuerReceiptResponse{
		Address: identity.String(),
		Name:    req.Name,
		TxRef:   receipt.TxRef,
		Chain:   receipt.Chain,
	})
}

// HandleRemove handles DELETE /issuers/{address}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.ledger.RemoveIssuer(ctx, identity)
	if err != nil {
		httputil.WriteError(w, h.translateLedgerErr(ctx, err, "remove issuer"))
		return
	}
	if err := h.emit(ctx, audit.ActionIssuerRemoved, identity, ""); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuerReceiptResponse{
		Address: identity.String(),
		TxRef:   receipt.TxRef,
		Chain:   receipt.Chain,
	})
}

type issuerStatusResponse struct {
	Address string `json:"address"`
	Active  bool   `json:"active"`
	Name    string `json:"name,omitempty"`
}

// HandleStatus handles GET /issuers/{address}.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.ledger.IsIssuerActive(ctx, identity)
	if err != nil {
		httputil.WriteError(w, h.translateLedgerErr(ctx, err, "issuer status"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuerStatusResponse{
		Address: identity.String(),
		Active:  status.Active,
		Name:    status.Name,
	})
}

func (h *Handler) emit(ctx context.Context, action audit.Action, identity domain.Address, name string) error {
	actor, _ := requestcontext.PrincipalFrom(ctx)
	details := map[string]any{"address": identity.String()}
	if name != "" {
		details["name"] = name
	}
	if err := h.audit.Emit(ctx, audit.Event{
		Action:  action,
		ActorID: actor.ID,
		Role:    actor.Role,
		Details: details,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}
	return nil
}

func (h *Handler) translateLedgerErr(ctx context.Context, err error, op string) error {
	h.logger.ErrorContext(ctx, "issuer registry operation failed", "op", op, "error", err)
	if ledger.IsUnavailable(err) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
