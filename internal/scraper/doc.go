// Package scraper fetches a web page through a chain of CORS-style proxies
// and extracts a short preview: title, readable text, outbound links and
// links to downloadable files (pdf, csv, xlsx).
//
// It backs the knowledge base preview. Ingestion itself is done by the
// remote scrape workflow, not here.
package scraper
