package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/4Science/mill/internal/workman"
)

// MemoryQueue is an in-process TaskQueue for tests and local runs. Taken
// tasks stay invisible until deleted or requeued, mirroring SQS
// visibility semantics without the timeout clock.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []*workman.Task
	inFlight map[string]*workman.Task
}

// NewMemoryQueue returns an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inFlight: make(map[string]*workman.Task)}
}

// Put enqueues a task for delivery.
func (q *MemoryQueue) Put(task *workman.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, task)
}

// Send enqueues a task, matching the producer-side queue contract.
func (q *MemoryQueue) Send(ctx context.Context, task *workman.Task) error {
	q.Put(task)
	return nil
}

// Take implements TaskQueue.
func (q *MemoryQueue) Take(ctx context.Context) (*workman.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, workman.ErrNoTask
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	task.Handle = uuid.New().String()
	q.inFlight[task.Handle] = task
	return task, nil
}

// Delete implements TaskQueue.
func (q *MemoryQueue) Delete(ctx context.Context, task *workman.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[task.Handle]; !ok {
		return fmt.Errorf("unknown task handle %s", task.Handle)
	}
	delete(q.inFlight, task.Handle)
	return nil
}

// Requeue implements TaskQueue.
func (q *MemoryQueue) Requeue(ctx context.Context, task *workman.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[task.Handle]; !ok {
		return fmt.Errorf("unknown task handle %s", task.Handle)
	}
	delete(q.inFlight, task.Handle)
	q.pending = append(q.pending, task)
	return nil
}

// Len reports the number of pending (visible) tasks.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
