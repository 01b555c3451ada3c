// Package events fans out cache invalidation messages to API clients.
//
// Hub is a bounded, sequenced ring buffer: Publish assigns a monotonically
// increasing sequence, Fetch long-polls for events after a cursor and Tail
// returns the latest events. The WebSocket and long-poll endpoints in httpapi
// are thin loops over Fetch; studio and the worker publish.
package events
