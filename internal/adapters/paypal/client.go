package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client implements ports.PaymentProcessor against the PayPal REST API
type Client struct {
	httpClient ports.HTTPClient
	tokens     func(context.Context) (*oauth2.Token, error)
	logger     ports.Logger
	breaker    *CircuitBreaker
	now        func() time.Time
	cfg        Config
	baseURL    string
}

var _ ports.PaymentProcessor = (*Client)(nil)

type Option func(*Client)

// WithTokenSource replaces the client-credentials token flow
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = func(context.Context) (*oauth2.Token, error) { return ts.Token() }
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithClock overrides the time source used for agreement start dates and search windows
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a PayPal client with dependency injection.
// When httpClient is an *http.Client it is also used for the OAuth token exchange.
func NewClient(cfg Config, httpClient ports.HTTPClient, logger ports.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    cfg.APIBaseURL(),
		httpClient: httpClient,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		creds := &cachedCredentials{cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     c.baseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}}
		if hc, ok := httpClient.(*http.Client); ok {
			creds.httpClient = hc
		}
		c.tokens = creds.Token
	}

	if c.breaker == nil {
		c.breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
		c.breaker.OnStateChange(func(s CircuitState) {
			observability.SetProcessorCircuitState(int(s))
			logger.Warn("PayPal circuit breaker changed state", ports.String("state", s.String()))
		})
	}

	return c
}

// cachedCredentials runs the client-credentials exchange with the caller's
// context and reuses the token until it expires
type cachedCredentials struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

func (c *cachedCredentials) Token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token, nil
	}
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, err
	}
	c.token = token
	return token, nil
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// errServerStatus marks a 5xx response as a breaker failure while keeping the body readable
var errServerStatus = errors.New("server error status")

// do sends one request and decodes a 2xx JSON body into out.
// The HTTP status is returned alongside the error so callers can
// recognise 404 for lookups. Every failure is a BACKEND_ERROR.
func (c *Client) do(ctx context.Context, operation, method, path string, in, out interface{}, opts ...requestOption) (int, error) {
	start := time.Now()
	status, err := c.send(ctx, method, path, in, out, opts...)

	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(string(domain.GetErrorCode(err)))
	}
	observability.RecordProcessorCall(operation, outcome, time.Since(start).Seconds())

	return status, err
}

func (c *Client) send(ctx context.Context, method, path string, in, out interface{}, opts ...requestOption) (int, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, domain.NewBackendError("failed to encode PayPal request", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, domain.NewBackendError("failed to build PayPal request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	c.logger.Debug("making request to PayPal",
		ports.String("method", method),
		ports.String("path", path),
	)

	var (
		resp     *http.Response
		tokenErr error
	)
	err = c.breaker.Call(func() error {
		token, err := c.tokens(ctx)
		if err != nil {
			tokenErr = err
			return err
		}
		token.SetAuthHeader(req)

		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return 0, domain.NewBackendError(domain.MsgProcessorUnavailable, err)
	}
	if tokenErr != nil {
		c.logger.Error("failed to obtain PayPal access token", ports.Err(tokenErr))
		return 0, domain.NewBackendError(domain.MsgAccessTokenUnobtained, tokenErr)
	}
	if resp == nil {
		c.logger.Error("PayPal request failed",
			ports.String("method", method),
			ports.String("path", path),
			ports.Err(err),
		)
		return 0, domain.NewBackendError("connection to PayPal failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, domain.NewBackendError("failed to read PayPal response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, raw)
		c.logger.Warn("PayPal rejected request",
			ports.String("method", method),
			ports.String("path", path),
			ports.Int("status", resp.StatusCode),
			ports.String("name", apiErr.Name),
			ports.String("debug_id", apiErr.DebugID),
		)
		return resp.StatusCode, apiErr.toDomain()
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, domain.NewBackendError("invalid response from PayPal", err)
		}
	}

	return resp.StatusCode, nil
}
