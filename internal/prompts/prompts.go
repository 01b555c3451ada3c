package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"shotdeck/internal/logging"
	"shotdeck/internal/services"
	"shotdeck/internal/services/llm"
)

const (
	component         = "prompts"
	defaultCount      = 4
	maxCount          = 16
	maxSummaryRunes   = 60
	generateMaxTokens = 4000
	summaryMaxTokens  = 40
)

// KeyResolver returns the user's own API key, or "" when none is stored.
type KeyResolver func(ctx context.Context, userID string) (string, error)

// Service wraps an llm.Client with prompt-writing operations.
type Service struct {
	client *llm.Client
	keys   KeyResolver
	logger *slog.Logger
}

// New constructs a Service. keys may be nil, in which case only the client's
// configured key is used.
func New(client *llm.Client, keys KeyResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		client: client,
		keys:   keys,
		logger: logging.NewComponentLogger(logger, component),
	}
}

// GenerateRequest describes a batch of prompts to draft.
type GenerateRequest struct {
	// Overall is the scene or story the prompts illustrate.
	Overall string `json:"overall"`
	// Rules are extra constraints passed through verbatim.
	Rules string `json:"rules,omitempty"`
	// Count is the number of prompts wanted; zero means four.
	Count int `json:"count,omitempty"`
	// Existing prompts are continued rather than repeated.
	Existing    []string `json:"existing,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
}

// EditRequest describes a single prompt revision.
type EditRequest struct {
	Prompt       string `json:"prompt"`
	Instructions string `json:"instructions"`
}

// Prompt is a generated prompt with its short label.
type Prompt struct {
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

// clientFor picks the user's key when stored, the configured key otherwise.
func (s *Service) clientFor(ctx context.Context, op, userID string) (*llm.Client, error) {
	client := s.client
	if s.keys != nil && strings.TrimSpace(userID) != "" {
		key, err := s.keys(ctx, userID)
		if err != nil {
			return nil, err
		}
		client = client.WithAPIKey(key)
	}
	if !client.Configured() {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, component, op, "no chat completion key available", nil),
			"store an openai key with `shotdeck apikey set openai` or set llm.api_key",
		)
	}
	return client, nil
}

// Generate drafts req.Count prompts.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) ([]string, error) {
	const op = "generate"
	overall := strings.TrimSpace(req.Overall)
	if overall == "" {
		return nil, services.Wrap(services.ErrValidation, component, op, "overall description required", nil)
	}
	count := req.Count
	switch {
	case count == 0:
		count = defaultCount
	case count < 0 || count > maxCount:
		return nil, services.Wrap(services.ErrValidation, component, op,
			fmt.Sprintf("count must be between 1 and %d", maxCount), nil)
	}
	client, err := s.clientFor(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	content, err := client.Complete(ctx, llm.Request{
		System:      generateInstructions,
		Messages:    []llm.Message{{Role: "user", Content: buildGenerateMessage(overall, req.Rules, count, req.Existing)}},
		Temperature: req.Temperature,
		MaxTokens:   generateMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Prompts []string `json:"prompts"`
	}
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrExternal, component, op, "parse generated prompts", err)
	}
	prompts := make([]string, 0, count)
	for _, prompt := range parsed.Prompts {
		if prompt = strings.TrimSpace(prompt); prompt != "" {
			prompts = append(prompts, prompt)
		}
		if len(prompts) == count {
			break
		}
	}
	if len(prompts) == 0 {
		return nil, services.Wrap(services.ErrExternal, component, op, "model returned no prompts", nil)
	}
	if len(prompts) < count {
		s.logger.Warn("model returned fewer prompts than requested",
			logging.String(logging.FieldEventType, "prompts_short"),
			logging.Int("requested", count),
			logging.Int("received", len(prompts)),
		)
	}
	return prompts, nil
}

func buildGenerateMessage(overall, rules string, count int, existing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d prompts.\n\nOverall description:\n%s\n", count, overall)
	if rules = strings.TrimSpace(rules); rules != "" {
		fmt.Fprintf(&b, "\nRules:\n%s\n", rules)
	}
	numbered := 0
	for _, prompt := range existing {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			continue
		}
		if numbered == 0 {
			b.WriteString("\nExisting prompts to continue from:\n")
		}
		numbered++
		fmt.Fprintf(&b, "%d. %s\n", numbered, prompt)
	}
	return b.String()
}

// Edit applies instructions to prompt and returns the revised text.
func (s *Service) Edit(ctx context.Context, userID string, req EditRequest) (string, error) {
	const op = "edit"
	prompt := strings.TrimSpace(req.Prompt)
	instructions := strings.TrimSpace(req.Instructions)
	if prompt == "" || instructions == "" {
		return "", services.Wrap(services.ErrValidation, component, op, "prompt and instructions required", nil)
	}
	client, err := s.clientFor(ctx, op, userID)
	if err != nil {
		return "", err
	}
	content, err := client.Complete(ctx, llm.Request{
		System: editInstructions,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Prompt:\n" + prompt + "\n\nInstructions:\n" + instructions,
		}},
	})
	if err != nil {
		return "", err
	}
	edited := cleanReply(content)
	if edited == "" {
		return "", services.Wrap(services.ErrExternal, component, op, "model returned an empty prompt", nil)
	}
	return edited, nil
}

// Summarize returns a short label for prompt.
func (s *Service) Summarize(ctx context.Context, userID, prompt string) (string, error) {
	const op = "summarize"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, component, op, "prompt required", nil)
	}
	client, err := s.clientFor(ctx, op, userID)
	if err != nil {
		return "", err
	}
	content, err := client.Complete(ctx, llm.Request{
		System:    summarizeInstructions,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	summary := cleanSummary(content)
	if summary == "" {
		return "", services.Wrap(services.ErrExternal, component, op, "model returned an empty summary", nil)
	}
	return summary, nil
}

// GenerateWithSummaries drafts prompts and then labels each one in order.
// A failed summary falls back to a truncated prompt.
func (s *Service) GenerateWithSummaries(ctx context.Context, userID string, req GenerateRequest) ([]Prompt, error) {
	texts, err := s.Generate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	out := make([]Prompt, 0, len(texts))
	for _, text := range texts {
		summary, err := s.Summarize(ctx, userID, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("prompt summary failed; using truncated prompt",
				logging.String(logging.FieldEventType, "prompt_summary_failed"),
				logging.Error(err),
			)
			summary = truncateRunes(text, maxSummaryRunes)
		}
		out = append(out, Prompt{Text: text, Summary: summary})
	}
	return out, nil
}

func cleanReply(content string) string {
	text := strings.TrimSpace(llm.StripFences(content))
	return strings.TrimSpace(strings.Trim(text, "\"'`"))
}

func cleanSummary(content string) string {
	text := cleanReply(content)
	if line, _, found := strings.Cut(text, "\n"); found {
		text = strings.TrimSpace(line)
	}
	text = strings.TrimRight(text, ".!;:, ")
	return truncateRunes(text, maxSummaryRunes)
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
