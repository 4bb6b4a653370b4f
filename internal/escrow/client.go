// Package escrow is the HTTP client of the escrow REST API.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout   = 30 * time.Second
	detailCacheTTL   = 30 * time.Second
	headerCSRF       = "X-CSRFToken"
	headerRequestID  = "X-Request-ID"
	headerIdempotent = "Idempotency-Key"
)

// Indicator is a loading indicator shown while a request is in flight.
type Indicator interface {
	Show()
	Hide()
}

type noopIndicator struct{}

func (noopIndicator) Show() {}
func (noopIndicator) Hide() {}

// ErrForeignLink is returned for a pagination link that points away from
// the API host.
var ErrForeignLink = errors.New("link points outside the API host")

// APIError is returned when the server answers with a non-success status.
type APIError struct {
	Errors     json.RawMessage
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Envelope is the standard response wrapper of the API.
type Envelope struct {
	Timestamp string          `json:"timestamp"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Errors    json.RawMessage `json:"errors"`
	Success   bool            `json:"success"`
}

// Client talks to the escrow API.
type Client struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	indicator   Indicator
	details     *cache.Cache
	logger      *slog.Logger
	baseURL     string
	csrfToken   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithCSRFToken sets the value sent in the X-CSRFToken header.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		c.csrfToken = token
	}
}

// WithIndicator sets the loading indicator toggled around each request.
func WithIndicator(ind Indicator) Option {
	return func(c *Client) {
		if ind != nil {
			c.indicator = ind
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		indicator:  noopIndicator{},
		details:    cache.New(detailCacheTTL, 2*detailCacheTTL),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestConfig struct {
	body      io.Reader
	query     url.Values
	headers   map[string]string
	jsonBody  any
	skipAuth  bool
	hasJSON   bool
	idempoKey bool
}

// RequestOption customizes a single request.
type RequestOption func(*requestConfig)

// WithJSON encodes v as the request body.
func WithJSON(v any) RequestOption {
	return func(rc *requestConfig) {
		rc.jsonBody = v
		rc.hasJSON = true
	}
}

// WithBody sends r as the raw request body. Pair it with a Content-Type
// header when the body is not JSON.
func WithBody(r io.Reader) RequestOption {
	return func(rc *requestConfig) {
		rc.body = r
	}
}

// WithHeader sets a header over the defaults.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.headers[key] = value
	}
}

// WithQuery appends query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) {
		rc.query = q
	}
}

// WithIdempotencyKey attaches a fresh Idempotency-Key header.
func WithIdempotencyKey() RequestOption {
	return func(rc *requestConfig) {
		rc.idempoKey = true
	}
}

func withoutAuth() RequestOption {
	return func(rc *requestConfig) {
		rc.skipAuth = true
	}
}

// Do issues a request and decodes the response data into out when out is
// not nil. The returned envelope carries the server message.
func (c *Client) Do(ctx context.Context, method, path string, out any, opts ...RequestOption) (*Envelope, error) {
	rc := &requestConfig{headers: map[string]string{}}
	for _, opt := range opts {
		opt(rc)
	}

	c.indicator.Show()
	defer c.indicator.Hide()

	req, err := c.newRequest(ctx, method, path, rc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("API request",
		"method", method,
		"url", req.URL.String(),
		"request_id", req.Header.Get(headerRequestID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	env, decodeErr := decodeEnvelope(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP error! status: %d", resp.StatusCode),
		}
		if decodeErr == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			apiErr.Errors = env.Errors
		}
		c.logger.Debug("API error", "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Errors: env.Errors}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return env, nil
}

// resolve turns a path or a server-sent absolute link into a URL on the
// API host. Absolute links keep only their path and query, so a downgraded
// http:// link goes out with the base URL's scheme. Links to another host
// are refused since the bearer token would travel with them.
func (c *Client) resolve(path string) (*url.URL, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u, err := url.Parse(c.baseURL + path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse URL: %w", err)
		}
		return u, nil
	}

	link, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	samePort := link.Port() == "" || link.Port() == base.Port()
	if !strings.EqualFold(link.Hostname(), base.Hostname()) || !samePort {
		return nil, fmt.Errorf("%w: %s", ErrForeignLink, link.Host)
	}
	rebased := *base
	rebased.Path = link.Path
	rebased.RawPath = link.RawPath
	rebased.RawQuery = link.RawQuery
	return &rebased, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, rc *requestConfig) (*http.Request, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	if len(rc.query) > 0 {
		q := u.Query()
		for key, values := range rc.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	body := rc.body
	if rc.hasJSON {
		payload, err := json.Marshal(rc.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if c.csrfToken != "" {
		req.Header.Set(headerCSRF, c.csrfToken)
	}
	if rc.idempoKey {
		req.Header.Set(headerIdempotent, uuid.NewString())
	}

	if c.tokenSource != nil && !rc.skipAuth {
		tok, err := c.tokenSource.Token()
		switch {
		case errors.Is(err, common.ErrNotAuthenticated):
		case err != nil:
			return nil, fmt.Errorf("failed to get access token: %w", err)
		case tok != nil && tok.AccessToken != "":
			tok.SetAuthHeader(req)
		}
	}

	for key, value := range rc.headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// decodeEnvelope accepts both wrapped {success, data, message} bodies and
// bare bodies, which are treated as successful data.
func decodeEnvelope(raw []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Envelope{Success: true}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		var list []json.RawMessage
		if listErr := json.Unmarshal(raw, &list); listErr != nil {
			return nil, err
		}
		return &Envelope{Success: true, Data: raw}, nil
	}

	if _, wrapped := probe["success"]; !wrapped {
		env := &Envelope{Success: true, Data: raw}
		for _, key := range []string{"message", "detail"} {
			if msg, ok := probe[key]; ok && env.Message == "" {
				_ = json.Unmarshal(msg, &env.Message)
			}
		}
		return env, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
