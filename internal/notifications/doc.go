// Package notifications delivers operator alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// can be muted through the [notifications] toggles so a busy bot does not
// flood the operator's phone.
package notifications
