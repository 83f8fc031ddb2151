package workman

import (
	"context"
	"errors"
)

// ErrNoTask indicates the queue had nothing to deliver within the
// receive wait window. Workers poll again.
var ErrNoTask = errors.New("no task available")

// TaskQueue delivers tasks to workers. The transport guarantees
// at-least-once delivery with visibility-timeout semantics: a taken task
// becomes invisible until deleted or requeued.
type TaskQueue interface {
	// Take receives one task, or ErrNoTask when the queue is empty.
	Take(ctx context.Context) (*Task, error)

	// Delete acknowledges terminal completion of a task.
	Delete(ctx context.Context, task *Task) error

	// Requeue makes a task immediately visible for redelivery.
	Requeue(ctx context.Context, task *Task) error
}
