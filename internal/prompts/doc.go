// Package prompts drafts, edits and labels image prompts through the chat
// completion client.
//
// Every call authenticates with the user's stored openai key when one exists
// and falls back to the configured llm.api_key otherwise. Multi-step
// operations such as GenerateWithSummaries run their requests one after the
// other so the results come back in prompt order.
package prompts
