// Package history keeps chat transcripts per webhook session.
//
// Two implementations satisfy History:
//
//   - StoreHistory writes turns to the SQLite threads and messages tables,
//     keeping them for as long as the database lives.
//   - RedisHistory keeps a capped list per session that expires after a TTL,
//     for deployments that should not retain conversations.
//
// The gateway picks RedisHistory when history.redis_url is configured.
package history
