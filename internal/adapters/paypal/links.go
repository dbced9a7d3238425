package paypal

import (
	"net/url"

	"github.com/kevin07696/paypal-billing/internal/domain"
)

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

const relApprovalURL = "approval_url"

// findApprovalURL returns the href of the first approval_url link
func findApprovalURL(links []link) (string, error) {
	for _, l := range links {
		if l.Rel == relApprovalURL {
			return l.Href, nil
		}
	}
	return "", domain.NewBackendError(domain.MsgApprovalURLNotFound, nil)
}

// findToken extracts the token query parameter from an approval URL
func findToken(approvalURL string) (string, error) {
	u, err := url.Parse(approvalURL)
	if err != nil {
		return "", domain.NewBackendError(domain.MsgTokenNotParsed, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		return "", domain.NewBackendError(domain.MsgTokenNotParsed, nil)
	}
	return token, nil
}

func approvalFromLinks(links []link) (string, string, error) {
	approvalURL, err := findApprovalURL(links)
	if err != nil {
		return "", "", err
	}
	token, err := findToken(approvalURL)
	if err != nil {
		return "", "", err
	}
	return approvalURL, token, nil
}
