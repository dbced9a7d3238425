package payment

import (
	"net/http"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/handlers/respond"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Callback paths the processor redirects the customer to
const (
	ReturnPath = "/api/v1/payments/return"
	CancelPath = "/api/v1/payments/cancel"
)

// Handler exposes one-time payments over HTTP
type Handler struct {
	service   serviceports.PaymentService
	returnURL string
	cancelURL string
	logger    *zap.Logger
}

// NewHandler creates a payment handler. returnURL and cancelURL are the
// absolute callback URLs sent to the processor.
func NewHandler(service serviceports.PaymentService, returnURL, cancelURL string, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		returnURL: returnURL,
		cancelURL: cancelURL,
		logger:    logger,
	}
}

// RegisterRoutes mounts the payment API. Callbacks are wrapped with callback,
// typically a rate limiter.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, callback func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/v1/payments", h.Start)
	mux.HandleFunc("GET /api/v1/payments", h.List)
	mux.HandleFunc("GET /api/v1/payments/{id}", h.Get)
	mux.Handle("GET "+ReturnPath, callback(http.HandlerFunc(h.Return)))
	mux.Handle("GET "+CancelPath, callback(http.HandlerFunc(h.CancelCallback)))
}

// StartRequest is the body of POST /api/v1/payments. Total includes Tax.
type StartRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=127"`
	Total       decimal.Decimal `json:"total"`
	Tax         decimal.Decimal `json:"tax"`
}

// StartResponse carries the approval URL the customer is redirected to
type StartResponse struct {
	Payment     *domain.Payment `json:"payment"`
	ApprovalURL string          `json:"approval_url"`
}

// Start handles POST /api/v1/payments
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	payment, err := h.service.Start(r.Context(), serviceports.StartPaymentRequest{
		CustomerID:  req.CustomerID,
		Description: req.Description,
		ReturnURL:   h.returnURL,
		CancelURL:   h.cancelURL,
		Total:       req.Total,
		Tax:         req.Tax,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, StartResponse{
		Payment:     payment,
		ApprovalURL: payment.ApprovalURL,
	})
}

type callbackQuery struct {
	Token     string `validate:"required"`
	PaymentID string
	PayerID   string
}

// Return handles the processor redirect after the customer approved:
// GET /api/v1/payments/return?token=..&paymentId=..&PayerID=..
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := callbackQuery{Token: q.Get("token"), PaymentID: q.Get("paymentId"), PayerID: q.Get("PayerID")}
	if err := respond.Validate(query); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	payment, err := h.service.Approve(r.Context(), serviceports.ApprovePaymentRequest{
		Token:     query.Token,
		PaymentID: query.PaymentID,
		PayerID:   query.PayerID,
	})
	if err != nil {
		h.logger.Warn("Payment approval failed",
			zap.String("token", query.Token),
			zap.Error(err),
		)
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, payment)
}

// CancelCallback handles GET /api/v1/payments/cancel?token=..
func (h *Handler) CancelCallback(w http.ResponseWriter, r *http.Request) {
	query := callbackQuery{Token: r.URL.Query().Get("token")}
	if err := respond.Validate(query); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	payment, err := h.service.Cancel(r.Context(), query.Token)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, payment)
}

// Get handles GET /api/v1/payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, payment)
}

// List handles GET /api/v1/payments?customer_id=..
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.List(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"payments": payments})
}
