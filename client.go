// Package rointe is a client for the Rointe Connect cloud, the platform
// behind Rointe radiators, towel rails, water heaters and thermostats.
//
// A Client authenticates once with user credentials, keeps its session
// fresh silently, and exposes read operations (installations, devices,
// energy statistics, firmware) plus state-changing device commands
// (temperature, preset, HVAC mode).
package rointe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config contains client configuration. The zero value targets the
// production cloud with the official application key.
type Config struct {
	AuthBaseURL    string // identity endpoints (login, account info)
	RefreshBaseURL string // token refresh endpoint
	DataBaseURL    string // device data store
	APIKey         string // application key sent on identity calls

	// AuthClient and DataClient override the HTTP clients used for
	// identity and data calls. Mostly useful for tests.
	AuthClient *http.Client
	DataClient *http.Client

	// Logger receives debug-level request logging. Nil disables logging.
	Logger *slog.Logger
}

// Client is the entry point to the Rointe cloud. It owns the session state
// and is safe to share across goroutines: session reads and refreshes are
// serialized internally.
type Client struct {
	authBaseURL    string
	refreshBaseURL string
	dataBaseURL    string
	apiKey         string

	authClient *http.Client
	dataClient *http.Client
	logger     *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	session session
}

// NewClient creates a client. It performs no network calls; call Login
// before any other operation.
func NewClient(config Config) *Client {
	c := &Client{
		authBaseURL:    config.AuthBaseURL,
		refreshBaseURL: config.RefreshBaseURL,
		dataBaseURL:    config.DataBaseURL,
		apiKey:         config.APIKey,
		authClient:     config.AuthClient,
		dataClient:     config.DataClient,
		logger:         config.Logger,
		now:            time.Now,
	}

	if c.authBaseURL == "" {
		c.authBaseURL = DefaultAuthBaseURL
	}
	if c.refreshBaseURL == "" {
		c.refreshBaseURL = DefaultRefreshBaseURL
	}
	if c.dataBaseURL == "" {
		c.dataBaseURL = DefaultDataBaseURL
	}
	if c.apiKey == "" {
		c.apiKey = DefaultAPIKey
	}
	if c.authClient == nil {
		c.authClient = &http.Client{Timeout: authTimeout}
	}
	if c.dataClient == nil {
		c.dataClient = &http.Client{Timeout: dataTimeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	return c
}

// do sends a single request and returns the status code and response body.
// Transport failures are reported as *TransportError; HTTP status handling
// is left to the caller.
func (c *Client) do(ctx context.Context, client *http.Client, op, method, rawURL string, query url.Values, contentType string, body []byte) (int, []byte, error) {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"op", op,
			"method", method,
			"error", err,
		)
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	c.logger.Debug("request complete",
		"op", op,
		"method", method,
		"status", resp.StatusCode,
	)

	return resp.StatusCode, respBody, nil
}

// postForm sends a form-encoded POST to an identity endpoint. Both identity
// services key requests on the application key as a query parameter.
func (c *Client) postForm(ctx context.Context, op, rawURL string, form url.Values) (int, []byte, error) {
	query := url.Values{"key": {c.apiKey}}
	body := []byte(form.Encode())
	return c.do(ctx, c.authClient, op, http.MethodPost, rawURL, query, "application/x-www-form-urlencoded", body)
}

// getData sends an authenticated GET to the data store. The current access
// token rides along as the "auth" query parameter.
func (c *Client) getData(ctx context.Context, op, path string, extra url.Values) (int, []byte, error) {
	query := url.Values{"auth": {c.accessToken()}}
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	return c.do(ctx, c.dataClient, op, http.MethodGet, c.dataBaseURL+path, query, "", nil)
}

// isNullPayload reports whether the data store answered "nothing here".
// Firebase returns a literal null body for absent paths instead of a 404.
func isNullPayload(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return s == "" || s == "null" || s == "{}"
}
