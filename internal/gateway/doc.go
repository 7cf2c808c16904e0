// Package gateway orchestrates the merti-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the merti-gateway server.
// It owns the store, the transcript history, the webhook client, the chat hub
// and services, optional image storage and the optional admin API, and serves
// all of them from a single http.ServeMux.
//
// # Wiring
//
//	store      SQLite (database.path, MERTI_DB_PATH overrides)
//	history    Redis when history.redis_url is set, else the store
//	webhook    one Client shared by chat and knowledge base ingestion
//	chat       Hub of per-visitor sessions, Service, REST and WebSocket handler
//	knowledge  Service over the store, the scrape webhook and the proxy scraper
//	storage    S3-compatible bucket when storage.endpoint is set
//	admin      JSON admin API when admin.email and admin.password_hash are set
//
// # HTTP Endpoints
//
//   - GET /health - Liveness check
//   - GET /health/ready - Store (and Redis) reachability
//   - /api/chat/..., /ws/chat - Visitor chat
//   - /api/admin/... - Admin API
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run shuts the HTTP server down gracefully within server.shutdown_timeout,
// then stops background cleanup loops and closes Redis and the store.
package gateway
