// Package chat serves the resident-facing assistant.
//
// A Hub keeps one webhook session per visitor and drops sessions that have
// been idle too long. Service sends visitor input through the webhook
// client, records both sides of the exchange, and renders the assistant's
// markdown reply to HTML. Handler exposes the service over JSON routes and
// a WebSocket channel.
package chat
