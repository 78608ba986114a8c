package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/contractdesk/internal/accounting"
	"github.com/odyssey-erp/contractdesk/internal/platform/httpx"
)

// Renderer turns HTML into PDF bytes.
type Renderer interface {
	Ping(ctx context.Context) error
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PreviewSource yields the printable rendering of an invoice.
type PreviewSource interface {
	Preview(ctx context.Context, id string) (accounting.Preview, error)
}

// Handler manages report endpoints.
type Handler struct {
	renderer Renderer
	previews PreviewSource
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(renderer Renderer, previews PreviewSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: renderer, previews: previews, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/invoices/{id}.pdf", h.invoicePDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "pdf renderer unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	preview, err := h.previews.Preview(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), preview.HTML)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.String("invoice_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway), "pdf rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+preview.Invoice.Number+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
