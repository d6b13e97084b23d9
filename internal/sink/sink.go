// Package sink applies the per-record persistence policy: a store write
// failure is logged and counted but never aborts the run.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// Sink persists assembled records through a RecordStore.
type Sink struct {
	store  crawler.RecordStore
	logger *zap.Logger
}

// New constructs a Sink.
func New(store crawler.RecordStore, logger *zap.Logger) *Sink {
	return &Sink{store: store, logger: logger}
}

// Persist inserts one record. There is no retry and no uniqueness check;
// the returned error marks this record as failed, nothing more.
func (s *Sink) Persist(ctx context.Context, rec crawler.ProductRecord) error {
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		crawler.PersistFailures.Inc()
		s.logger.Error("record insert failed",
			zap.String("run_id", rec.RunID),
			zap.String("name", rec.Name),
			zap.Error(err),
		)
		return fmt.Errorf("insert record: %w", err)
	}
	crawler.RecordsPersisted.Inc()
	s.logger.Debug("record inserted",
		zap.String("run_id", rec.RunID), zap.String("name", rec.Name))
	return nil
}
