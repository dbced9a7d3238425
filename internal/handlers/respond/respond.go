// Package respond writes JSON responses and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	if errors.Is(err, ports.ErrLockNotAcquired) {
		return http.StatusConflict
	}
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidationFailed:
		return http.StatusBadRequest
	case domain.ErrorCodeNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeInvalidStateTransition:
		return http.StatusConflict
	case domain.ErrorCodeBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an ErrorBody. Internal errors are logged and their
// message is not exposed.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: domain.ErrorMessage(err)}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		body.Code = string(domainErr.Code)
		if status != http.StatusInternalServerError && len(domainErr.Details) > 0 {
			body.Details = domainErr.Details
		}
	}
	if errors.Is(err, ports.ErrLockNotAcquired) {
		body.Error = ports.ErrLockNotAcquired.Error()
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		body.Error = "internal error"
	}

	JSON(w, logger, status, body)
}

// Decode reads a JSON body into dst and validates its struct tags
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return Validate(dst)
}

// Validate checks v against its validate tags
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return domain.NewValidationError("invalid request: " + strings.Join(fields, ", "))
}
