package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shotdeck/internal/config"
	"shotdeck/internal/services"
)

const (
	jsonResponseType      = "json_object"
	defaultBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
	component             = "llm"
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// ConfigFromApp maps the [llm] section of the application config.
func ConfigFromApp(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a completion. System is sent first when set.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// Client wraps the chat completion API.
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

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
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

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Complete sends req and returns the trimmed text of the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	const op = "complete"
	if !c.Configured() {
		return "", services.WithHint(
			services.Wrap(services.ErrConfiguration, component, op, "api key required", nil),
			"set llm.api_key, OPENAI_API_KEY, or store an openai key for the user",
		)
	}
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: content})
	}
	if len(messages) == 0 || messages[len(messages)-1].Role == "system" {
		return "", services.Wrap(services.ErrValidation, component, op, "at least one user message required", nil)
	}

	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}
	content, err := c.completionContentWithRetry(ctx, payload, op)
	if err != nil {
		return "", classify(op, err)
	}
	return content, nil
}

// CompleteJSON issues a JSON-only request and decodes the reply into target.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error {
	content, err := c.Complete(ctx, Request{
		System:   systemPrompt,
		Messages: []Message{{Role: "user", Content: userPrompt}},
		JSON:     true,
	})
	if err != nil {
		return err
	}
	if err := DecodeLLMJSON(content, target); err != nil {
		return services.Wrap(services.ErrExternal, component, "complete json", "parse payload", err)
	}
	return nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`, &parsed); err != nil {
		return err
	}
	if !parsed.OK {
		return services.Wrap(services.ErrExternal, component, "health", "unexpected response", nil)
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	marker := services.ErrExternal
	var statusErr *httpStatusError
	switch {
	case errors.As(err, &statusErr) && (statusErr.StatusCode == 401 || statusErr.StatusCode == 403):
		marker = services.ErrConfiguration
	case isRetryable(err):
		marker = services.ErrTransient
	}
	return services.Wrap(marker, component, op, "chat completion failed", err)
}
