package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shotdeck/internal/config"
	"shotdeck/internal/services"
)

const (
	component             = "fal"
	defaultBaseURL        = "https://queue.fal.run"
	defaultHTTPTimeout    = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultRunTimeout     = 15 * time.Minute
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// Queue states reported by the status endpoint.
const (
	StateInQueue    = "IN_QUEUE"
	StateInProgress = "IN_PROGRESS"
	StateCompleted  = "COMPLETED"
)

// Config captures the runtime settings required to talk to fal.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// ConfigFromApp maps the [fal] section of the application config.
func ConfigFromApp(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:       cfg.Fal.APIKey,
		BaseURL:      cfg.Fal.BaseURL,
		PollInterval: time.Duration(cfg.Fal.PollIntervalSeconds) * time.Second,
		Timeout:      time.Duration(cfg.Fal.TimeoutSeconds) * time.Second,
	}
}

// Submission identifies a queued request.
type Submission struct {
	Model       string `json:"-"`
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	CancelURL   string `json:"cancel_url"`
}

// Status is the queue state of a submission.
type Status struct {
	State         string          `json:"status"`
	QueuePosition int             `json:"queue_position"`
	Logs          []StatusLogLine `json:"logs"`
}

// StatusLogLine is a progress message emitted by the model runner.
type StatusLogLine struct {
	Message string `json:"message"`
}

// Done reports whether the request finished.
func (s Status) Done() bool {
	return s.State == StateCompleted
}

// Client wraps the fal queue API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithSleeper overrides how retry and poll sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// WithAPIKey returns a copy of the client that authenticates with key. An
// empty key returns the receiver unchanged.
func (c *Client) WithAPIKey(key string) *Client {
	key = strings.TrimSpace(key)
	if c == nil || key == "" {
		return c
	}
	clone := *c
	clone.cfg.APIKey = key
	return &clone
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Submit queues input for model.
func (c *Client) Submit(ctx context.Context, model string, input any) (*Submission, error) {
	const op = "submit"
	if !c.Configured() {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, component, op, "api key required", nil),
			"set fal.api_key, FAL_KEY, or store a fal key for the user",
		)
	}
	model = strings.Trim(strings.TrimSpace(model), "/")
	if model == "" {
		return nil, services.Wrap(services.ErrValidation, component, op, "model required", nil)
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, op, "encode input", err)
	}
	var sub Submission
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/"+model, encoded, &sub); err != nil {
		return nil, classify(op, err)
	}
	if sub.RequestID == "" {
		return nil, services.Wrap(services.ErrExternal, component, op, "response missing request_id", nil)
	}
	sub.Model = model
	c.fillURLs(&sub)
	return &sub, nil
}

// Status fetches the queue state of sub.
func (c *Client) Status(ctx context.Context, sub *Submission) (Status, error) {
	var status Status
	if err := c.doJSON(ctx, http.MethodGet, withQuery(sub.StatusURL, "logs", "1"), nil, &status); err != nil {
		return Status{}, classify("status", err)
	}
	return status, nil
}

// Result decodes the response payload of a completed submission into out.
func (c *Client) Result(ctx context.Context, sub *Submission, out any) error {
	if err := c.doJSON(ctx, http.MethodGet, sub.ResponseURL, nil, out); err != nil {
		return classify("result", err)
	}
	return nil
}

// Cancel asks fal to drop a queued request. Requests already running may
// still complete remotely.
func (c *Client) Cancel(ctx context.Context, sub *Submission) error {
	if err := c.doJSON(ctx, http.MethodPut, sub.CancelURL, nil, nil); err != nil {
		return classify("cancel", err)
	}
	return nil
}

// Run submits input, waits for completion and decodes the result into out.
// onStatus, when set, observes every polled status.
func (c *Client) Run(ctx context.Context, model string, input, out any, onStatus func(Status)) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	sub, err := c.Submit(ctx, model, input)
	if err != nil {
		return err
	}
	for {
		status, err := c.Status(ctx, sub)
		if err != nil {
			return c.abandon(ctx, sub, err)
		}
		if onStatus != nil {
			onStatus(status)
		}
		if status.Done() {
			break
		}
		if err := c.wait(ctx, c.cfg.PollInterval); err != nil {
			return c.abandon(ctx, sub, err)
		}
	}
	return c.Result(ctx, sub, out)
}

func (c *Client) abandon(ctx context.Context, sub *Submission, cause error) error {
	if ctx.Err() == nil {
		return cause
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_ = c.Cancel(cancelCtx, sub)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(cause, context.Canceled) {
		return services.Wrap(services.ErrTransient, component, "run",
			fmt.Sprintf("request %s did not finish within %s", sub.RequestID, c.cfg.Timeout), ctx.Err())
	}
	return ctx.Err()
}

func (c *Client) fillURLs(sub *Submission) {
	base := c.cfg.BaseURL + "/" + appID(sub.Model) + "/requests/" + sub.RequestID
	if sub.StatusURL == "" {
		sub.StatusURL = base + "/status"
	}
	if sub.ResponseURL == "" {
		sub.ResponseURL = base
	}
	if sub.CancelURL == "" {
		sub.CancelURL = base + "/cancel"
	}
}

// appID trims a model path to its owner/app prefix, which is how request
// URLs are addressed.
func appID(model string) string {
	parts := strings.Split(model, "/")
	if len(parts) <= 2 {
		return model
	}
	return strings.Join(parts[:2], "/")
}

func withQuery(raw, key, value string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := parsed.Query()
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

func (e *httpStatusError) retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, out any) error {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.doOnce(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts || ctx.Err() != nil || !isRetryable(err) {
			break
		}
		if err := c.wait(ctx, c.backoffDelay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w (payload snippet: %s)", err, snippet(string(payload)))
	}
	return nil
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt && delay < c.retryMaxDelay; i++ {
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	marker := services.ErrExternal
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			marker = services.ErrConfiguration
		case statusErr.StatusCode == http.StatusUnprocessableEntity || statusErr.StatusCode == http.StatusBadRequest:
			marker = services.ErrValidation
		case statusErr.retryable():
			marker = services.ErrTransient
		}
	} else if isRetryable(err) {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, component, op, "queue request failed", err)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 200
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
