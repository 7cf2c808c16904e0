// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// A single Store interface covers everything the gateway persists. SQLiteStore
// implements it on modernc.org/sqlite (pure Go, no cgo) and MockStore keeps
// everything in memory for tests.
//
// # Data Models
//
//   - Document: an ingested knowledge chunk; metadata.link names its source
//   - ScrapedFile: a pdf, csv or xlsx link found while scraping, unique by URL
//   - Page: a web page registered in the knowledge base, unique by URL
//   - Request: a resident request (forms, issues, services)
//   - Thread / Message: chat transcripts keyed by webhook session id
//   - AuditEntry: one admin action, append-only
//
// Derived views (UniqueLinks, FileLinks, PageLinks, ComputeDashboardStats)
// are pure functions over loaded rows and need no database.
//
// # Schema
//
// Tables are created on open and idempotent column migrations run after.
// Timestamps are stored as RFC3339 text in UTC. The database runs in WAL
// mode with foreign keys enabled.
//
// # Errors
//
//   - ErrNotFound: the row does not exist
//   - ErrDuplicate: a unique URL is already present
//   - ErrInvalid: a value violates a column constraint
package store
