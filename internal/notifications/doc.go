// Package notifications delivers task events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event kind
// can be switched off through the [notifications] section, so the worker can
// publish unconditionally.
package notifications
