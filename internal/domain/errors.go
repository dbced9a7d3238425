package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// ErrorCodeBackend covers every failure reported by, or while talking to, the payment processor
	ErrorCodeBackend ErrorCode = "BACKEND_ERROR"

	ErrorCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrorCodeNotFound               ErrorCode = "NOT_FOUND"

	// ErrorCodeRender is logged by the invoice flow and never returned to callers
	ErrorCodeRender ErrorCode = "RENDER_ERROR"

	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// NewBackendError builds the single error kind every processor failure is normalised to.
// message is the human-readable reason (processor message, "Payment not found", ...).
func NewBackendError(message string, cause error) *DomainError {
	return WrapError(ErrorCodeBackend, message, cause)
}

// NewNotFoundError reports a missing local or remote entity
func NewNotFoundError(entity, id string) *DomainError {
	return NewDomainError(ErrorCodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewRenderError wraps a document rendering failure
func NewRenderError(invoiceID string, err error) *DomainError {
	return WrapError(ErrorCodeRender, "invoice document could not be rendered", err).
		WithDetail("invoice_id", invoiceID)
}

// NewInvoiceDispatchedError reports an attempt to dispatch an invoice twice
func NewInvoiceDispatchedError(invoiceID string) *DomainError {
	return NewDomainError(ErrorCodeInvalidStateTransition, "invoice already dispatched").
		WithDetail("entity", "invoice").
		WithDetail("id", invoiceID)
}

// NewValidationError reports rejected input
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorCodeValidationFailed, message)
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// ErrorMessage returns the DomainError message, or err.Error() for any other error
func ErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

func IsNotFoundError(err error) bool {
	return IsDomainError(err, ErrorCodeNotFound)
}

func IsBackendError(err error) bool {
	return IsDomainError(err, ErrorCodeBackend)
}

func IsInvalidStateTransition(err error) bool {
	return IsDomainError(err, ErrorCodeInvalidStateTransition)
}

func IsValidationError(err error) bool {
	return IsDomainError(err, ErrorCodeValidationFailed)
}

// Backend failure messages surfaced verbatim from the processor flows
const (
	MsgApprovalURLNotFound   = "Approval URL is not found"
	MsgTokenNotParsed        = "Unable to parse token from approval_url"
	MsgPaymentNotFound       = "Payment not found"
	MsgAgreementNotFound     = "Agreement not found"
	MsgInvoiceNotFound       = "Invoice not found"
	MsgAgreementNotExecuted  = "Can not execute agreement"
	MsgProcessorUnavailable  = "payment processor unavailable"
	MsgAccessTokenUnobtained = "unable to obtain access token"
)
