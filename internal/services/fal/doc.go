// Package fal talks to the fal.ai queue REST API.
//
// A generation is submitted to POST {base}/{model}, which answers with a
// request id plus status and response URLs. The client polls the status URL
// until the request reports COMPLETED and then fetches the response payload.
// Run wraps the full cycle and cancels the remote request when the caller's
// context ends first.
//
// Authentication uses the "Authorization: Key <key>" header. Transport
// failures, HTTP 408, 429 and 5xx responses are retried with the same capped
// exponential backoff the chat client uses.
package fal
