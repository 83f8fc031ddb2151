package dup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/4Science/mill/internal/workman"
)

// ErrMalformedTask indicates a queue message missing required duplication
// task fields. Not retryable.
var ErrMalformedTask = errors.New("malformed duplication task")

// Task property names on the generic queue task.
const (
	propAccount       = "account"
	propSourceStoreID = "sourceStoreId"
	propDestStoreID   = "destStoreId"
	propSpaceID       = "spaceId"
	propDestSpaceID   = "destSpaceId"
	propContentID     = "contentId"
)

// Task is one unit of duplication work. An empty ContentID means the
// whole space; an empty DestSpaceID means the destination mirrors the
// source space name. The value is transient; only its outcome is
// retained.
type Task struct {
	Account       string
	SourceStoreID string
	DestStoreID   string
	SpaceID       string
	DestSpaceID   string
	ContentID     string
}

// destSpace is the space written on the destination provider.
func (t Task) destSpace() string {
	if t.DestSpaceID != "" {
		return t.DestSpaceID
	}
	return t.SpaceID
}

// ReadTask extracts a duplication task from a generic queue task,
// failing with ErrMalformedTask when a required field is absent.
func ReadTask(t *workman.Task) (Task, error) {
	task := Task{
		Account:       t.Property(propAccount),
		SourceStoreID: t.Property(propSourceStoreID),
		DestStoreID:   t.Property(propDestStoreID),
		SpaceID:       t.Property(propSpaceID),
		DestSpaceID:   t.Property(propDestSpaceID),
		ContentID:     t.Property(propContentID),
	}
	for name, v := range map[string]string{
		propAccount:       task.Account,
		propSourceStoreID: task.SourceStoreID,
		propDestStoreID:   task.DestStoreID,
		propSpaceID:       task.SpaceID,
	} {
		if v == "" {
			return Task{}, fmt.Errorf("missing property %q: %w", name, ErrMalformedTask)
		}
	}
	return task, nil
}

// Result classifies one duplication attempt.
type Result string

const (
	ResultSuccess          Result = "SUCCESS"
	ResultFailure          Result = "FAILURE"
	ResultSkippedUnchanged Result = "SKIPPED_UNCHANGED"
)

// OutcomeEvent is the immutable record of one duplication attempt for one
// content item. Once written it is never mutated.
type OutcomeEvent struct {
	Account       string
	SourceStoreID string
	DestStoreID   string
	SpaceID       string
	ContentID     string
	Result        Result
	Checksum      string
	Detail        string
	Timestamp     time.Time
}

// OutcomeWriter consumes outcome events. Implementations append to the
// audit/bit-integrity log stores.
type OutcomeWriter interface {
	WriteOutcome(ctx context.Context, event OutcomeEvent) error
}
