// Package llm is a small client for OpenAI-compatible chat completion APIs.
//
// Prompt tooling uses Complete for free text (prompt edits, short summaries)
// and CompleteJSON when the model must return a structured list. WithAPIKey
// derives a client that authenticates with a user's own key while sharing the
// transport and retry policy.
//
// Requests are retried on HTTP 408, 429 and 5xx responses, on network
// timeouts and on empty completions, with exponential backoff (1s base, 10s
// cap, 5 attempts by default). Retry-After is honoured. Context cancellation
// aborts immediately.
//
// Failures are returned as services errors: a missing key is ErrConfiguration,
// provider failures are ErrExternal, and retryable provider failures that
// exhausted their attempts are ErrTransient.
package llm
