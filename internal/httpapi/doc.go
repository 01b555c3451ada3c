// Package httpapi exposes the studio over HTTP.
//
// REST routes live under /api and map one-to-one onto studio.Service
// operations. Every request is authenticated as a user: a static API token
// or an HS256 JWT whose subject is the user id, or the configured default
// user when no credentials are configured. Cache invalidation events reach
// clients over a WebSocket at /api/events or the long-poll fallback at
// /api/events/poll. Stored media is served as static files under the media
// public prefix.
package httpapi
