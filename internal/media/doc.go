// Package media keeps generation outputs on local disk.
//
// Files live under the configured media directory as
// <project id>/<generation file>. Their public location is the configured
// prefix joined with that relative path (for example
// /media/3f2c.../b81e....png), which the HTTP API serves as static files.
// Locations that do not start with the prefix are remote URLs and are never
// touched by Remove.
package media
