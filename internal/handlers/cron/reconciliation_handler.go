package cron

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/kevin07696/paypal-billing/internal/handlers/respond"
	"github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"go.uber.org/zap"
)

// ReconciliationHandler exposes the reconciliation tasks to an external scheduler
type ReconciliationHandler struct {
	service    ports.ReconciliationService
	timeouts   *resilience.TimeoutConfig
	logger     *zap.Logger
	cronSecret string
	now        func() time.Time
}

func NewReconciliationHandler(
	service ports.ReconciliationService,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
	cronSecret string,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		service:    service,
		timeouts:   timeouts,
		logger:     logger,
		cronSecret: cronSecret,
		now:        time.Now,
	}
}

// ReconcileResponse is returned by both reconcile endpoints
type ReconcileResponse struct {
	Success     bool                `json:"success"`
	Results     []*ports.TaskResult `json:"results"`
	Error       string              `json:"error,omitempty"`
	ProcessedAt string              `json:"processed_at"`
}

func (h *ReconciliationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /cron/reconcile", h.ReconcileAll)
	mux.HandleFunc("POST /cron/reconcile/{task}", h.ReconcileTask)
	mux.HandleFunc("GET /cron/health", h.HealthCheck)
}

// ReconcileAll runs every task concurrently
func (h *ReconciliationHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	ctx, cancel := h.runContext(r)
	defer cancel()

	results, err := h.service.RunAll(ctx)
	h.write(w, results, err)
}

// ReconcileTask runs a single task named by the path
func (h *ReconciliationHandler) ReconcileTask(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var run func(context.Context) (*ports.TaskResult, error)
	switch task := r.PathValue("task"); task {
	case ports.TaskCleanupStalePayments:
		run = h.service.CleanupStalePayments
	case ports.TaskDispatchInvoices:
		run = h.service.DispatchInvoices
	case ports.TaskDebitConsumption:
		run = h.service.DebitConsumption
	case ports.TaskSyncAgreements:
		run = h.service.SyncAgreementTransactions
	default:
		h.writeError(w, http.StatusNotFound, "unknown task: "+task)
		return
	}

	ctx, cancel := h.runContext(r)
	defer cancel()

	result, err := run(ctx)
	var results []*ports.TaskResult
	if result != nil {
		results = append(results, result)
	}
	h.write(w, results, err)
}

// HealthCheck handles GET /cron/health
func (h *ReconciliationHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, h.logger, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}

// runContext detaches the run from the client connection so a scheduler
// hanging up does not abort a batch halfway.
func (h *ReconciliationHandler) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return h.timeouts.CronContext(context.WithoutCancel(r.Context()))
}

func (h *ReconciliationHandler) write(w http.ResponseWriter, results []*ports.TaskResult, err error) {
	resp := ReconcileResponse{
		Success:     err == nil,
		Results:     results,
		ProcessedAt: h.now().UTC().Format(time.RFC3339),
	}
	for _, result := range results {
		if result != nil && result.Failed > 0 {
			resp.Success = false
		}
	}

	status := http.StatusOK
	switch {
	case err != nil:
		h.logger.Error("Reconciliation failed", zap.Error(err))
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	case !resp.Success:
		status = http.StatusPartialContent
	}

	h.logger.Info("Reconciliation request completed",
		zap.Int("tasks", len(results)),
		zap.Bool("success", resp.Success),
	)
	respond.JSON(w, h.logger, status, resp)
}

func (h *ReconciliationHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.authenticateRequest(r) {
		return true
	}
	h.logger.Warn("Unauthorized cron request", zap.String("remote_addr", r.RemoteAddr))
	h.writeError(w, http.StatusUnauthorized, "unauthorized")
	return false
}

// authenticateRequest accepts the shared secret in X-Cron-Secret or as a
// bearer token. An empty configured secret rejects everything.
func (h *ReconciliationHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	if secretEqual(r.Header.Get("X-Cron-Secret"), h.cronSecret) {
		return true
	}
	return secretEqual(r.Header.Get("Authorization"), "Bearer "+h.cronSecret)
}

func secretEqual(given, want string) bool {
	return given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

func (h *ReconciliationHandler) writeError(w http.ResponseWriter, status int, message string) {
	respond.JSON(w, h.logger, status, ReconcileResponse{
		Success:     false,
		Error:       message,
		ProcessedAt: h.now().UTC().Format(time.RFC3339),
	})
}
