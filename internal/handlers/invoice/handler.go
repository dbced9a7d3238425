package invoice

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/handlers/respond"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"go.uber.org/zap"
)

// Handler exposes invoices and their documents over HTTP
type Handler struct {
	service serviceports.InvoiceService
	logger  *zap.Logger
}

func NewHandler(service serviceports.InvoiceService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/invoices", h.List)
	mux.HandleFunc("GET /api/v1/invoices/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/invoices/{id}/document", h.Download)
	mux.HandleFunc("POST /api/v1/invoices/{id}/document", h.Regenerate)
	mux.HandleFunc("POST /api/v1/invoices/{id}/dispatch", h.Dispatch)
	mux.HandleFunc("POST /api/v1/invoices/{id}/pull", h.Pull)
}

// invoiceView adds the computed totals to the stored invoice
type invoiceView struct {
	*domain.Invoice
	TotalAmount string `json:"total_amount"`
	TotalTax    string `json:"total_tax"`
}

func view(inv *domain.Invoice) invoiceView {
	return invoiceView{
		Invoice:     inv,
		TotalAmount: inv.TotalAmount().StringFixed(2),
		TotalTax:    inv.TotalTax().StringFixed(2),
	}
}

// List handles GET /api/v1/invoices?customer_id=..
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.List(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	views := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, view(inv))
	}
	respond.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"invoices": views})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, view(inv))
}

// Download streams the rendered PDF
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.service.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write invoice document", zap.Error(err))
	}
}

// Regenerate handles POST /api/v1/invoices/{id}/document
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GenerateDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, view(inv))
}

// Dispatch handles POST /api/v1/invoices/{id}/dispatch
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Dispatch(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, view(inv))
}

// Pull handles POST /api/v1/invoices/{id}/pull
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Pull(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, view(inv))
}
