// Package knowledge manages the pages and files that feed the assistant's
// knowledge base.
//
// Adding a page hands the URL to the remote scrape workflow, which does the
// actual ingestion into the documents table. This package only records what
// was requested, guards against duplicate and concurrent submissions, and
// offers a local preview of a page through the scraper.
package knowledge
