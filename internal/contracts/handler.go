package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/contractdesk/internal/platform/httpx"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// SyncEnqueuer queues a contract sync for the background worker.
type SyncEnqueuer interface {
	EnqueueContractSync(ctx context.Context, contractID, userID string) (string, error)
}

// Handler exposes the contract store over JSON.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	enqueuer SyncEnqueuer
}

// NewHandler builds Handler instance. enqueuer may be nil when jobs are disabled.
func NewHandler(logger *slog.Logger, store *Store, enqueuer SyncEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, enqueuer: enqueuer}
}

// MountRoutes registers contract routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.post)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Post("/withdraw", h.withdraw)
		r.Post("/reserve", h.reserve)
		r.Post("/cancel", h.cancel)
		r.Get("/reservation", h.reservation)
		r.Post("/ready", h.ready)
		r.Post("/delivered", h.delivered)
		r.Post("/verify", h.verify)
		r.Post("/sync", h.sync)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Type:     ContractType(q.Get("type")),
		Search:   q.Get("q"),
		PostedBy: q.Get("posted_by"),
	}
	filter.OpenOnly, _ = strconv.ParseBool(q.Get("open"))
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.Type != "" && !filter.Type.IsValid() {
		httpx.RespondError(w, fmt.Errorf("contract type %q: %w", filter.Type, shared.ErrValidation))
		return
	}
	items, page := h.store.List(r.Context(), filter)
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input PostInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.Post(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.ownedContract(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err = h.store.Update(r.Context(), actor, c.ID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.ownedContract(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err = h.store.Withdraw(r.Context(), actor, c.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// ownedContract loads the contract in the path and checks the actor posted it.
func (h *Handler) ownedContract(r *http.Request, actor shared.Actor) (Contract, error) {
	c, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return Contract{}, err
	}
	if c.PostedByUserID != actor.UserID {
		return Contract{}, fmt.Errorf("contract %s is not posted by %s: %w", c.ID, actor.UserID, shared.ErrForbidden)
	}
	return c, nil
}

type reserveResponse struct {
	InvoiceID string   `json:"invoice_id"`
	Contract  Contract `json:"contract"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ReserveInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	c, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if c.PostedByUserID == actor.UserID {
		httpx.RespondError(w, fmt.Errorf("reserve %s: %w", id, ErrOwnContract))
		return
	}
	invoiceID, err := h.store.Reserve(r.Context(), actor, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err = h.store.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reserveResponse{InvoiceID: invoiceID, Contract: c})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) reservation(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.store.UserReservation(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.MarkReadyForDelivery(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delivered(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.MarkDelivered(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type verifyRequest struct {
	Role string `json:"role"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := shared.ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.VerifyExecution(r.Context(), actor, chi.URLParam(r, "id"), role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.enqueuer != nil {
		c, err := h.store.Get(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if c.DocStatus == DocCancelled {
			httpx.RespondError(w, fmt.Errorf("sync %s: %w", id, ErrContractClosed))
			return
		}
		taskID, err := h.enqueuer.EnqueueContractSync(r.Context(), id, actor.UserID)
		if err != nil {
			h.logger.Error("enqueue contract sync", slog.String("contract_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, httpx.Accepted{Status: "queued", TaskID: taskID})
		return
	}
	if _, err := h.store.SyncExternally(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
