package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingPagesFetched tracks listing pages successfully rendered.
	ListingPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_listing_pages_total",
		Help: "The total number of listing pages rendered.",
	})
	// SummariesExtracted tracks item summaries produced from listing pages.
	SummariesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_summaries_total",
		Help: "The total number of item summaries extracted.",
	})
	// DetailFetchFailures tracks detail pages that could not be fetched or parsed.
	DetailFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_detail_failures_total",
		Help: "The total number of failed detail page fetches.",
	})
	// RecordsPersisted tracks records successfully written to the store.
	RecordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_persisted_total",
		Help: "The total number of product records inserted.",
	})
	// PersistFailures tracks records dropped by store write failures.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_persist_failures_total",
		Help: "The total number of failed record inserts.",
	})
	// ExportedRows tracks rows written to export artifacts.
	ExportedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_exported_rows_total",
		Help: "The total number of rows written to export files.",
	})
)
