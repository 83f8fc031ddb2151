// Package bit implements bit-integrity check tasks: verifying that
// stored content's checksum still matches its expected value and
// recording the result in the bit log.
package bit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/4Science/mill/internal/bitlog"
	"github.com/4Science/mill/internal/storeprovider"
	"github.com/4Science/mill/internal/workman"
)

// ErrMalformedTask indicates a queue message missing required
// bit-integrity task fields. Not retryable.
var ErrMalformedTask = errors.New("malformed bit integrity task")

const (
	propAccount          = "account"
	propStoreID          = "storeId"
	propSpaceID          = "spaceId"
	propContentID        = "contentId"
	propExpectedChecksum = "expectedChecksum"
)

// Task is one bit-integrity check.
type Task struct {
	Account          string
	StoreID          string
	SpaceID          string
	ContentID        string
	ExpectedChecksum string
}

// ReadTask extracts a bit-integrity task from a generic queue task.
func ReadTask(t *workman.Task) (Task, error) {
	task := Task{
		Account:          t.Property(propAccount),
		StoreID:          t.Property(propStoreID),
		SpaceID:          t.Property(propSpaceID),
		ContentID:        t.Property(propContentID),
		ExpectedChecksum: t.Property(propExpectedChecksum),
	}
	for name, v := range map[string]string{
		propAccount:          task.Account,
		propStoreID:          task.StoreID,
		propSpaceID:          task.SpaceID,
		propContentID:        task.ContentID,
		propExpectedChecksum: task.ExpectedChecksum,
	} {
		if v == "" {
			return Task{}, fmt.Errorf("missing property %q: %w", name, ErrMalformedTask)
		}
	}
	return task, nil
}

// TaskProcessor performs one bit-integrity check attempt.
type TaskProcessor struct {
	task     Task
	provider storeprovider.StorageProvider
	repo     bitlog.ItemRepo
	log      *slog.Logger
}

// NewTaskProcessor wires a processor for a single check.
func NewTaskProcessor(task Task, provider storeprovider.StorageProvider, repo bitlog.ItemRepo) *TaskProcessor {
	return &TaskProcessor{
		task:     task,
		provider: provider,
		repo:     repo,
		log: slog.With(
			"component", "bit-processor",
			"account", task.Account,
			"store", task.StoreID,
			"space", task.SpaceID,
			"content", task.ContentID,
		),
	}
}

// Execute reads the content's checksum and records whether it matches
// the expected value. A transport failure is recorded as ERROR and
// returned for redelivery; a checksum mismatch is recorded as FAILURE
// and is terminal for this attempt.
func (p *TaskProcessor) Execute(ctx context.Context) error {
	defer p.provider.Close()

	meta, err := p.provider.GetMetadata(ctx, p.task.SpaceID, p.task.ContentID)
	if err != nil {
		p.record(ctx, bitlog.ResultError, "", err.Error())
		return fmt.Errorf("read content metadata: %w", err)
	}

	if meta.Checksum != p.task.ExpectedChecksum {
		p.log.Error("bit integrity failure",
			"expected", p.task.ExpectedChecksum, "actual", meta.Checksum)
		p.record(ctx, bitlog.ResultFailure, meta.Checksum,
			fmt.Sprintf("checksum mismatch: expected %s, found %s", p.task.ExpectedChecksum, meta.Checksum))
		return nil
	}

	p.record(ctx, bitlog.ResultSuccess, meta.Checksum, "")
	return nil
}

func (p *TaskProcessor) record(ctx context.Context, result bitlog.Result, checksum, detail string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := p.repo.Write(writeCtx, bitlog.Item{
		Account:          p.task.Account,
		StoreID:          p.task.StoreID,
		SpaceID:          p.task.SpaceID,
		ContentID:        p.task.ContentID,
		Result:           result,
		ContentChecksum:  checksum,
		ExpectedChecksum: p.task.ExpectedChecksum,
		Detail:           detail,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("failed to record bit log item", "error", err)
	}
}
