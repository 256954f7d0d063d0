package notify

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
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/insider-one/notifications-go-client/internal/auth"
)

const (
	defaultTimeout = 30 * time.Second
	uuidLen        = 36
)

// Limiter throttles outgoing requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client is a Notify API client. Create one with New.
type Client struct {
	baseURL    string
	serviceID  string
	secret     string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	limiter    Limiter
	metrics    *clientMetrics
	validate   *validator.Validate
	now        func() time.Time
}

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	limiter    Limiter
	registerer prometheus.Registerer
	now        func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL sets the API base URL. Defaults to DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests. Its Timeout is left
// untouched unless WithTimeout is also given.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(o *options) {
		o.userAgent = userAgent
	}
}

// WithLogger sets the logger used for request diagnostics. Requests are
// logged at debug level without credentials.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLimiter makes every request wait on limiter before it is sent.
func WithLimiter(limiter Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithMetrics registers request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New creates a Client from an API key of the form <name>-<service id>-<secret>.
func New(apiKey string, opts ...Option) (*Client, error) {
	serviceID, secret, err := parseAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	o := options{
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.timeout > 0 {
		copied := *httpClient
		copied.Timeout = o.timeout
		httpClient = &copied
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL:    strings.TrimRight(o.baseURL, "/"),
		serviceID:  serviceID,
		secret:     secret,
		httpClient: httpClient,
		userAgent:  o.userAgent,
		logger:     logger,
		limiter:    o.limiter,
		validate:   newValidator(),
		now:        o.now,
	}

	if o.registerer != nil {
		m, err := newClientMetrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		c.metrics = m
	}

	return c, nil
}

// ServiceID returns the service id parsed from the API key.
func (c *Client) ServiceID() string {
	return c.serviceID
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// parseAPIKey splits <name>-<service id>-<secret>. The name may itself
// contain dashes, so the ids are taken from the end of the key.
func parseAPIKey(key string) (serviceID, secret string, err error) {
	key = strings.TrimSpace(key)
	n := len(key)

	// name (at least one char) + "-" + uuid + "-" + uuid
	if n < 2*uuidLen+3 {
		return "", "", &CredentialFormatError{Reason: "key is too short"}
	}
	if key[n-uuidLen-1] != '-' || key[n-2*uuidLen-2] != '-' {
		return "", "", &CredentialFormatError{Reason: "expected <name>-<service id>-<secret>"}
	}

	secret = key[n-uuidLen:]
	serviceID = key[n-2*uuidLen-1 : n-uuidLen-1]

	if _, err := uuid.Parse(serviceID); err != nil {
		return "", "", &CredentialFormatError{Reason: "service id is not a uuid"}
	}
	if _, err := uuid.Parse(secret); err != nil {
		return "", "", &CredentialFormatError{Reason: "secret is not a uuid"}
	}

	return serviceID, secret, nil
}

type endpoint struct {
	name   string
	method string
	path   string
}

// call sends one request and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, ep endpoint, query url.Values, body, out any) error {
	status, data, err := c.send(ctx, ep, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &InvalidResponseError{StatusCode: status, err: err}
	}
	return nil
}

// send performs exactly one HTTP exchange. Transport failures become
// RequestError and statuses >= 400 become HTTPError.
func (c *Client) send(ctx context.Context, ep endpoint, query url.Values, body any) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, newRequestError(err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + ep.path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := auth.CreateToken(c.secret, c.serviceID, c.now())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(ep, "error", time.Since(start))
		c.logger.Debug("notify request failed",
			"endpoint", ep.name,
			"method", ep.method,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return 0, nil, newRequestError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(ep, "error", time.Since(start))
		return 0, nil, newRequestError(err)
	}

	duration := time.Since(start)
	c.observe(ep, strconv.Itoa(resp.StatusCode), duration)
	c.logger.Debug("notify request",
		"endpoint", ep.name,
		"method", ep.method,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, nil, newHTTPError(resp.StatusCode, respBody)
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) observe(ep endpoint, code string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.observe(ep.name, code, d)
	}
}

type errorBody struct {
	StatusCode int           `json:"status_code"`
	Errors     []ErrorDetail `json:"errors"`
}

func newHTTPError(status int, body []byte) error {
	httpErr := HTTPError{StatusCode: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		httpErr.Errors = parsed.Errors
	} else {
		httpErr.Errors = []ErrorDetail{{
			Error:   http.StatusText(status),
			Message: RequestErrorMessage,
		}}
	}

	if status == http.StatusNotFound {
		return &NotFoundError{HTTPError: httpErr}
	}
	return &httpErr
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c *Client) validateRequest(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Tag() == "required" {
			msg = "is required"
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}
