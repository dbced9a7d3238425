package paypal

import "strings"

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"

	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"
)

// Config holds PayPal REST credentials and defaults
type Config struct {
	Mode         string // sandbox or live
	BaseURL      string // overrides Mode when set (tests, proxies)
	ClientID     string
	ClientSecret string
	Currency     string
}

// APIBaseURL resolves the REST endpoint for the configured mode
func (c Config) APIBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Mode == ModeLive {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

func (c Config) currency() string {
	if c.Currency == "" {
		return "USD"
	}
	return c.Currency
}
