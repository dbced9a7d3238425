package agreement

import (
	"net/http"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/handlers/respond"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ReturnPath = "/api/v1/agreements/return"
	CancelPath = "/api/v1/agreements/cancel"
)

// Handler exposes recurring billing agreements over HTTP
type Handler struct {
	service   serviceports.AgreementService
	returnURL string
	cancelURL string
	logger    *zap.Logger
}

func NewHandler(service serviceports.AgreementService, returnURL, cancelURL string, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		returnURL: returnURL,
		cancelURL: cancelURL,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux, callback func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/v1/agreements", h.Start)
	mux.HandleFunc("GET /api/v1/agreements/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/agreements/{id}/status", h.Status)
	mux.HandleFunc("POST /api/v1/agreements/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/v1/agreements/{id}/sync", h.Sync)
	mux.HandleFunc("GET /api/v1/agreements/{id}/transactions", h.Transactions)
	mux.Handle("GET "+ReturnPath, callback(http.HandlerFunc(h.Return)))
	mux.Handle("GET "+CancelPath, callback(http.HandlerFunc(h.Abort)))
}

// StartRequest is the body of POST /api/v1/agreements
type StartRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required,max=255"`
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description" validate:"max=127"`
	Amount      decimal.Decimal `json:"amount"`
}

type StartResponse struct {
	Agreement   *domain.Agreement `json:"agreement"`
	ApprovalURL string            `json:"approval_url"`
}

// Start handles POST /api/v1/agreements
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	agreement, err := h.service.Start(r.Context(), serviceports.StartAgreementRequest{
		CustomerID:  req.CustomerID,
		Name:        req.Name,
		Description: req.Description,
		ReturnURL:   h.returnURL,
		CancelURL:   h.cancelURL,
		Amount:      req.Amount,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, StartResponse{
		Agreement:   agreement,
		ApprovalURL: agreement.ApprovalURL,
	})
}

type tokenQuery struct {
	Token string `validate:"required"`
}

// Return handles GET /api/v1/agreements/return?token=..
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	query := tokenQuery{Token: r.URL.Query().Get("token")}
	if err := respond.Validate(query); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	agreement, err := h.service.Approve(r.Context(), query.Token)
	if err != nil {
		h.logger.Warn("Agreement approval failed",
			zap.String("token", query.Token),
			zap.Error(err),
		)
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, agreement)
}

// Abort handles GET /api/v1/agreements/cancel?token=..
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	query := tokenQuery{Token: r.URL.Query().Get("token")}
	if err := respond.Validate(query); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	agreement, err := h.service.AbortByToken(r.Context(), query.Token)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, agreement)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	agreement, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, agreement)
}

// Status handles GET /api/v1/agreements/{id}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, record)
}

// Cancel handles POST /api/v1/agreements/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	agreement, err := h.service.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, agreement)
}

// Sync handles POST /api/v1/agreements/{id}/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	agreement, err := h.service.SyncStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, agreement)
}

// Transactions handles GET /api/v1/agreements/{id}/transactions?start_date=YYYY-MM-DD[&end_date=YYYY-MM-DD]
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(timeutil.DateLayout, q.Get("start_date"))
	if err != nil {
		respond.Error(w, h.logger, domain.NewValidationError("start_date must be YYYY-MM-DD"))
		return
	}

	var end *time.Time
	if raw := q.Get("end_date"); raw != "" {
		parsed, err := time.Parse(timeutil.DateLayout, raw)
		if err != nil {
			respond.Error(w, h.logger, domain.NewValidationError("end_date must be YYYY-MM-DD"))
			return
		}
		end = &parsed
	}

	txs, err := h.service.ListTransactions(r.Context(), r.PathValue("id"), start, end)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"transactions": txs})
}
