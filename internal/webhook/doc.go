// Package webhook is the client for the n8n chat and scrape webhooks.
//
// # Overview
//
// Every conversational operation of the assistant is performed by an
// externally hosted workflow. This package owns the three pieces that sit
// between a caller and that workflow:
//
//   - Session: lazily obtains a conversation id, at most once per generation,
//     and synthesizes a local id when the remote is silent or unreachable.
//   - Normalize: turns a raw response body (single JSON object, NDJSON stream,
//     or garbage) into a non-empty display message.
//   - Client: builds JSON or multipart payloads, performs the POST and funnels
//     the body through Normalize.
//
// # Sessions
//
// A Session is an explicit value owned by whatever renders the conversation
// (a chat hub entry, a terminal REPL). It is passed by pointer to every Client
// call:
//
//	client := webhook.New(webhook.Config{ChatURL: chatURL, ScrapeURL: scrapeURL})
//	sess := client.NewSession()
//	resp, err := client.SendText(ctx, sess, "When is bin collection?")
//
// Concurrent callers racing to start a conversation share one initialization
// request. Reset discards the current id and starts a new one.
//
// # Response Shapes
//
// The workflow may answer with one completed JSON document:
//
//	{"output": "Bin collection is on Tuesdays."}
//
// or with a stream of partial documents, one per line:
//
//	{"type":"begin"}
//	{"type":"item","content":"Bin collection "}
//	{"type":"item","content":"is on Tuesdays."}
//	{"type":"end"}
//
// Field precedence is an ordered rule table per Profile; see Normalize.
//
// # Errors
//
// Non-2xx statuses are returned as *StatusError. Parse failures never
// surface: they degrade to the profile's fallback message.
package webhook
