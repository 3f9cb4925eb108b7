// Package client talks to the optimization and ingestion service. Every
// call is a single blocking request; callers decide how to react to a
// failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/model"
)

const (
	ConnectTimeout = 5 * time.Second
	SubsetTimeout  = 300 * time.Second
	DefaultTimeout = 60 * time.Second
)

// ErrDryRun is returned instead of sending a request in dry-run mode.
var ErrDryRun = errors.New("dry run: request not sent")

type Client struct {
	logger     zerolog.Logger
	baseURL    string
	token      string
	userAgent  string
	testRunner string
	dryRun     bool
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTestRunner sets the X-Test-Runner header.
func WithTestRunner(name string) Option {
	return func(c *Client) {
		c.testRunner = name
	}
}

// WithDryRun logs requests instead of sending them.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) {
		c.dryRun = dryRun
	}
}

// WithHTTPClient replaces the default HTTP client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the workspace endpoint prefix baseURL.
func New(logger zerolog.Logger, baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", baseURL)
	}

	c := &Client{
		logger:    logger,
		baseURL:   strings.TrimSuffix(baseURL, "/") + "/",
		userAgent: "subsetter",
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: ConnectTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subset asks the service to select the tests to run.
func (c *Client) Subset(ctx context.Context, req *model.SubsetRequest) (*model.SubsetResponse, error) {
	var resp model.SubsetResponse
	if err := c.post(ctx, "subset", req, true, SubsetTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Slice fetches one bin of a previously computed subset.
func (c *Client) Slice(ctx context.Context, subsettingID int64, req *model.SliceRequest) (*model.SubsetResponse, error) {
	var resp model.SubsetResponse
	if err := c.post(ctx, fmt.Sprintf("subset/%d/slice", subsettingID), req, false, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events uploads case events to a test session, given as
// builds/<build>/test_sessions/<id>.
func (c *Client) Events(ctx context.Context, session string, payload *model.EventsPayload) error {
	return c.post(ctx, strings.Trim(session, "/")+"/events", payload, true, DefaultTimeout, nil)
}

type sessionRequest struct {
	Flavors       map[string]string `json:"flavors,omitempty"`
	IsObservation bool              `json:"isObservation,omitempty"`
}

type sessionResponse struct {
	ID int64 `json:"id"`
}

// SessionOptions are the attributes of a new test session.
type SessionOptions struct {
	Flavors       map[string]string
	IsObservation bool
}

// CreateSession starts a test session for a build and returns its path,
// builds/<build>/test_sessions/<id>.
func (c *Client) CreateSession(ctx context.Context, build string, opts SessionOptions) (string, error) {
	prefix := fmt.Sprintf("builds/%s/test_sessions", url.PathEscape(build))
	req := sessionRequest{Flavors: opts.Flavors, IsObservation: opts.IsObservation}

	var resp sessionResponse
	if err := c.post(ctx, prefix, req, false, DefaultTimeout, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d", prefix, resp.ID), nil
}

func (c *Client) post(ctx context.Context, path string, payload any, compress bool, timeout time.Duration, out any) error {
	body, err := encode(payload, compress)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	requestID := uuid.NewString()
	log := c.logger.With().Str("endpoint", endpoint).Str("request_id", requestID).Logger()

	if c.dryRun {
		log.Info().Int("bytes", len(body)).Bool("gzip", compress).Msg("Dry run: skipping POST")
		return ErrDryRun
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.testRunner != "" {
		req.Header.Set("X-Test-Runner", c.testRunner)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	log.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("POST done")

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &model.ServerValidationError{Reason: reason(respBody)}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &model.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: reason(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &model.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func encode(payload any, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf

	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(&buf)
		w = gz
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress request: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// reason extracts the "reason" field of an error body, or returns the body
// itself when it isn't one.
func reason(body []byte) string {
	var e model.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Reason != "" {
		return e.Reason
	}
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
