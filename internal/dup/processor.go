package dup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/4Science/mill/internal/storeprovider"
)

// ErrChecksumMismatch indicates the destination checksum did not match
// the source after a copy. Distinguished from plain transport failures
// because a recurrence for the same content may indicate corruption.
var ErrChecksumMismatch = errors.New("checksum mismatch after copy")

// TaskProcessor executes one duplication attempt against a resolved
// source and destination provider. A processor handles exactly one task
// and is discarded afterwards; failures are never retried internally.
type TaskProcessor struct {
	task     Task
	source   storeprovider.StorageProvider
	dest     storeprovider.StorageProvider
	outcomes OutcomeWriter
	log      *slog.Logger
}

// NewTaskProcessor wires a processor for a single task.
func NewTaskProcessor(task Task, source, dest storeprovider.StorageProvider, outcomes OutcomeWriter) *TaskProcessor {
	return &TaskProcessor{
		task:     task,
		source:   source,
		dest:     dest,
		outcomes: outcomes,
		log: slog.With(
			"component", "dup-processor",
			"account", task.Account,
			"space", task.SpaceID,
			"source_store", task.SourceStoreID,
			"dest_store", task.DestStoreID,
			"dest_space", task.destSpace(),
		),
	}
}

// Execute runs the duplication protocol. A nil return means the attempt
// reached a terminal SUCCESS or SKIPPED_UNCHANGED state; an error return
// means a retryable FAILURE was recorded and the task should be
// redelivered by the queue layer.
func (p *TaskProcessor) Execute(ctx context.Context) error {
	defer p.source.Close()
	defer p.dest.Close()

	if p.task.ContentID != "" {
		return p.duplicateContent(ctx, p.task.ContentID)
	}
	return p.duplicateSpace(ctx)
}

// duplicateSpace applies the single-item protocol to every content item
// in the source space. Mirroring is additive: items present only on the
// destination are left alone.
func (p *TaskProcessor) duplicateSpace(ctx context.Context) error {
	contentIDs, err := p.source.ListSpace(ctx, p.task.SpaceID)
	if err != nil {
		err = fmt.Errorf("list source space: %w", err)
		p.recordOutcome(ctx, "", ResultFailure, "", failureDetail(err))
		return err
	}
	p.log.Info("duplicating space", "items", len(contentIDs))

	if len(contentIDs) == 0 {
		// Nothing to copy; still leave one event so the attempt is
		// visible in the log store.
		p.recordOutcome(ctx, "", ResultSkippedUnchanged, "", "source space empty")
		return nil
	}

	var failed int
	var firstErr error
	for _, contentID := range contentIDs {
		if err := p.duplicateContent(ctx, contentID); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			// A canceled context will fail every remaining item the
			// same way; stop early and let the queue redeliver.
			if ctx.Err() != nil {
				break
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("space %s: %d of %d items failed: %w",
			p.task.SpaceID, failed, len(contentIDs), firstErr)
	}
	return nil
}

// duplicateContent copies one content item if the destination does not
// already hold an identical copy, then verifies the written checksum.
func (p *TaskProcessor) duplicateContent(ctx context.Context, contentID string) error {
	srcMeta, err := p.source.GetMetadata(ctx, p.task.SpaceID, contentID)
	if err != nil {
		err = fmt.Errorf("read source metadata: %w", err)
		p.recordOutcome(ctx, contentID, ResultFailure, "", failureDetail(err))
		return err
	}

	destMeta, err := p.dest.GetMetadata(ctx, p.task.destSpace(), contentID)
	if err != nil && !errors.Is(err, storeprovider.ErrContentNotFound) {
		err = fmt.Errorf("read destination metadata: %w", err)
		p.recordOutcome(ctx, contentID, ResultFailure, "", failureDetail(err))
		return err
	}

	if destMeta != nil && destMeta.Checksum == srcMeta.Checksum {
		p.log.Debug("destination in sync", "content", contentID, "checksum", srcMeta.Checksum)
		p.recordOutcome(ctx, contentID, ResultSkippedUnchanged, srcMeta.Checksum, "")
		return nil
	}

	body, err := p.source.Get(ctx, p.task.SpaceID, contentID)
	if err != nil {
		err = fmt.Errorf("read source content: %w", err)
		p.recordOutcome(ctx, contentID, ResultFailure, "", failureDetail(err))
		return err
	}
	written, err := p.dest.Put(ctx, p.task.destSpace(), contentID, body)
	body.Close()
	if err != nil {
		err = fmt.Errorf("write destination content: %w", err)
		p.recordOutcome(ctx, contentID, ResultFailure, "", failureDetail(err))
		return err
	}

	if written != srcMeta.Checksum {
		err = fmt.Errorf("%w: source %s, destination %s", ErrChecksumMismatch, srcMeta.Checksum, written)
		p.recordOutcome(ctx, contentID, ResultFailure, written, err.Error())
		return err
	}

	p.log.Info("content duplicated", "content", contentID, "bytes", srcMeta.Size, "checksum", written)
	p.recordOutcome(ctx, contentID, ResultSuccess, written, "")
	return nil
}

// recordOutcome appends exactly one event for this item's attempt. Event
// writes must not mask the processing result, so failures are logged and
// swallowed here.
func (p *TaskProcessor) recordOutcome(ctx context.Context, contentID string, result Result, checksum, detail string) {
	if p.outcomes == nil {
		return
	}
	event := OutcomeEvent{
		Account:       p.task.Account,
		SourceStoreID: p.task.SourceStoreID,
		DestStoreID:   p.task.DestStoreID,
		SpaceID:       p.task.SpaceID,
		ContentID:     contentID,
		Result:        result,
		Checksum:      checksum,
		Detail:        detail,
		Timestamp:     time.Now().UTC(),
	}
	// Record with a fresh context so a task deadline that expired
	// mid-protocol still gets its FAILURE event written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.outcomes.WriteOutcome(writeCtx, event); err != nil {
		p.log.Error("failed to record outcome event", "content", contentID, "error", err)
	}
}

// failureDetail renders an error for the outcome record, flagging
// timeouts so the queue layer's redelivery is observable as such.
func failureDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: " + err.Error()
	}
	return err.Error()
}
