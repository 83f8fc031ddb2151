package auditlog

import (
	"context"

	"github.com/4Science/mill/internal/dup"
)

// OutcomeWriter adapts an ItemRepo to the duplication processor's event
// sink.
type OutcomeWriter struct {
	repo ItemRepo
}

// NewOutcomeWriter returns the adapter.
func NewOutcomeWriter(repo ItemRepo) *OutcomeWriter {
	return &OutcomeWriter{repo: repo}
}

// WriteOutcome implements dup.OutcomeWriter.
func (w *OutcomeWriter) WriteOutcome(ctx context.Context, event dup.OutcomeEvent) error {
	return w.repo.Write(ctx, Item{
		Account:       event.Account,
		SourceStoreID: event.SourceStoreID,
		StoreID:       event.DestStoreID,
		SpaceID:       event.SpaceID,
		ContentID:     event.ContentID,
		Result:        string(event.Result),
		Checksum:      event.Checksum,
		Detail:        event.Detail,
		Timestamp:     event.Timestamp,
	})
}
