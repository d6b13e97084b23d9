// Package crawler defines the core types and contracts for the catalog
// crawl engine: the run identity, item summaries and product records, the
// rendering and persistence interfaces, and the pagination engine that
// drives one crawl from the first listing page through export.
package crawler
