// Package webadmin provides the JSON API behind the council staff dashboard.
//
// # Authentication
//
// A single admin account is configured in the gateway config (admin.email
// and a bcrypt admin.password_hash). POST /api/admin/login checks the
// credentials and sets an HttpOnly cookie holding a signed session token;
// every other route requires that cookie or the same token as a bearer
// header.
//
// # Routes
//
//   - Requests: resident requests logged by the assistant workflow, with
//     dashboard statistics and attached photos from image storage.
//   - Knowledge base: pages submitted for ingestion, ingested documents,
//     downloadable files, and a local page preview.
//   - Files: the scraped_files table.
//   - Images: the image storage bucket.
//   - Audit: GET /api/admin/audit lists recorded admin actions, newest
//     first, filtered by action, target_type, target_id, since and limit.
//
// Successful logins and every successful mutation append an audit entry
// naming the signed-in admin.
//
// All responses are JSON; errors use {"error": "..."}.
package webadmin
