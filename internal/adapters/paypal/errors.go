package paypal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kevin07696/paypal-billing/internal/domain"
)

// apiError is the PayPal error envelope. OAuth failures use the
// error/error_description pair instead of name/message.
type apiError struct {
	Name             string        `json:"name"`
	Message          string        `json:"message"`
	DebugID          string        `json:"debug_id"`
	OAuthError       string        `json:"error"`
	OAuthDescription string        `json:"error_description"`
	Details          []errorDetail `json:"details"`
	Status           int           `json:"-"`
}

type errorDetail struct {
	Field       string `json:"field"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

func parseAPIError(status int, body []byte) *apiError {
	e := &apiError{Status: status}
	_ = json.Unmarshal(body, e)
	return e
}

func (e *apiError) Error() string {
	parts := []string{fmt.Sprintf("status %d", e.Status)}
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	if e.DebugID != "" {
		parts = append(parts, "debug_id="+e.DebugID)
	}
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Issue)
	}
	return strings.Join(parts, ", ")
}

// reason is the human-readable message carried on the backend error
func (e *apiError) reason() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.OAuthDescription != "":
		return e.OAuthDescription
	case e.OAuthError != "":
		return e.OAuthError
	default:
		return fmt.Sprintf("PayPal returned HTTP %d", e.Status)
	}
}

func (e *apiError) toDomain() error {
	de := domain.NewBackendError(e.reason(), e).WithDetail("status", e.Status)
	if e.DebugID != "" {
		de = de.WithDetail("debug_id", e.DebugID)
	}
	return de
}
