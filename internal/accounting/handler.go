package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/platform/httpx"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// SyncEnqueuer queues an invoice sync for the background worker.
type SyncEnqueuer interface {
	EnqueueInvoiceSync(ctx context.Context, invoiceID, userID string) (string, error)
}

// Handler exposes the accounting store over JSON.
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

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Get("/sales", h.salesInvoices)
		r.Get("/purchases", h.purchaseInvoices)
		r.Get("/{id}", h.getInvoice)
		r.Get("/{id}/preview", h.preview)
		r.Post("/{id}/status", h.updateStatus)
		r.Post("/{id}/verify", h.verify)
		r.Post("/{id}/sync", h.sync)
	})
	r.Get("/payments", h.listPayments)
	r.Post("/payments", h.addPayment)
	r.Get("/parties", h.listParties)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.DashboardSummary(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func invoiceFilter(r *http.Request) InvoiceFilter {
	q := r.URL.Query()
	f := InvoiceFilter{
		Status:        InvoiceStatus(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("payment_status")),
		SyncStatus:    erp.SyncStatus(q.Get("sync_status")),
		ContractID:    q.Get("contract_id"),
		Search:        q.Get("q"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return f
}

func listBody(items []Invoice, page shared.Pagination) map[string]any {
	return map[string]any{"data": items, "pagination": page}
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	items, page := h.store.Invoices(r.Context(), invoiceFilter(r))
	httpx.JSON(w, http.StatusOK, listBody(items, page))
}

func (h *Handler) salesInvoices(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page := h.store.SalesInvoices(r.Context(), actor, invoiceFilter(r))
	httpx.JSON(w, http.StatusOK, listBody(items, page))
}

func (h *Handler) purchaseInvoices(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page := h.store.PurchaseInvoices(r.Context(), actor, invoiceFilter(r))
	httpx.JSON(w, http.StatusOK, listBody(items, page))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.HTML))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := ParseInvoiceStatus(req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.store.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
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
	inv, err := h.store.VerifyExecution(r.Context(), actor, chi.URLParam(r, "id"), role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.enqueuer != nil {
		if err := h.store.CheckSyncGate(r.Context(), id); err != nil {
			httpx.RespondError(w, err)
			return
		}
		taskID, err := h.enqueuer.EnqueueInvoiceSync(r.Context(), id, actor.UserID)
		if err != nil {
			h.logger.Error("enqueue invoice sync", slog.String("invoice_id", id), slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("enqueue invoice sync: %w", err))
			return
		}
		httpx.JSON(w, http.StatusAccepted, httpx.Accepted{Status: "queued", TaskID: taskID})
		return
	}
	if _, err := h.store.SyncToERP(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.store.Invoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"data": h.store.Payments(r.Context(), r.URL.Query().Get("invoice_id"))})
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.store.AddPayment(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	role := PartyRole(r.URL.Query().Get("role"))
	if role != "" && role != PartyBuyer && role != PartySeller {
		httpx.RespondError(w, fmt.Errorf("party role %q: %w", role, shared.ErrValidation))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": h.store.Parties(r.Context(), role)})
}
