// Package dedupe provides a time-bounded set of keys. The chat service uses it
// to drop replayed client message ids, and the knowledge base uses it to hold
// URLs that are currently being scraped.
package dedupe
