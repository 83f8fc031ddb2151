package workman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/4Science/mill/internal/logging"
	"github.com/4Science/mill/internal/metrics"
)

// TaskWorkerManager runs a pool of workers, each pulling one task at a
// time from the queue and driving it through the matching processor
// under a per-task timeout. Retry is never performed here: a retryable
// failure requeues the task for the queue layer's redelivery policy, a
// configuration failure dead-letters it.
type TaskWorkerManager struct {
	queue       TaskQueue
	factories   []TaskProcessorFactory
	workers     int
	taskTimeout time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger

	wg sync.WaitGroup
}

// NewTaskWorkerManager wires a manager. A nil metrics value disables
// instrumentation.
func NewTaskWorkerManager(q TaskQueue, factories []TaskProcessorFactory, workers int, taskTimeout time.Duration, m *metrics.Metrics) *TaskWorkerManager {
	if workers < 1 {
		workers = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}
	return &TaskWorkerManager{
		queue:       q,
		factories:   factories,
		workers:     workers,
		taskTimeout: taskTimeout,
		metrics:     m,
		log:         slog.With("component", "worker-manager"),
	}
}

// Run starts the worker pool and blocks until the context is canceled
// and all in-flight tasks have drained.
func (m *TaskWorkerManager) Run(ctx context.Context) {
	m.log.Info("starting workers", "count", m.workers, "task_timeout", m.taskTimeout)
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(ctx, i)
	}
	m.wg.Wait()
	m.log.Info("all workers stopped")
}

func (m *TaskWorkerManager) workerLoop(ctx context.Context, workerID int) {
	defer m.wg.Done()
	log := logging.WorkerLogger(workerID)

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := m.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrNoTask) {
				if m.metrics != nil {
					m.metrics.EmptyTakes.Inc()
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if m.metrics != nil {
				m.metrics.QueueErrors.Inc()
			}
			log.Error("queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		m.processOne(ctx, log, task)
	}
}

// processOne runs one delivery attempt of one task to completion.
func (m *TaskWorkerManager) processOne(ctx context.Context, log *slog.Logger, task *Task) {
	correlationID := logging.GenerateCorrelationID()
	log = log.With("correlation_id", correlationID, "task_type", task.Type)
	taskCtx := logging.WithCorrelationID(ctx, correlationID)

	if m.metrics != nil {
		m.metrics.WorkersBusy.Inc()
		defer m.metrics.WorkersBusy.Dec()
	}

	start := time.Now()
	err := m.executeTask(taskCtx, task)
	elapsed := time.Since(start)
	if m.metrics != nil {
		m.metrics.TaskDuration.WithLabelValues(string(task.Type)).Observe(elapsed.Seconds())
	}

	switch {
	case err == nil:
		if derr := m.queue.Delete(ctx, task); derr != nil {
			// Deletion failure means the queue will redeliver; the
			// processor's idempotence makes that safe.
			log.Warn("failed to acknowledge task", "error", derr)
		}
		if m.metrics != nil {
			m.metrics.TasksCompleted.WithLabelValues(string(task.Type)).Inc()
		}
		log.Info("task complete", "duration", elapsed.String())

	case isCreationFailure(err):
		// Configuration problem; redelivery cannot help.
		log.Error("task dead-lettered", "error", err)
		if derr := m.queue.Delete(ctx, task); derr != nil {
			log.Warn("failed to remove dead-lettered task", "error", derr)
		}
		if m.metrics != nil {
			m.metrics.TasksDeadLettered.WithLabelValues(string(task.Type)).Inc()
		}

	default:
		log.Warn("task failed, requeueing", "error", err, "duration", elapsed.String())
		if rerr := m.queue.Requeue(context.WithoutCancel(ctx), task); rerr != nil {
			// Leave the message to the queue's visibility timeout.
			log.Warn("failed to requeue task", "error", rerr)
		}
		if m.metrics != nil {
			m.metrics.TasksFailed.WithLabelValues(string(task.Type)).Inc()
		}
	}
}

// creationError marks non-retryable processor creation failures.
type creationError struct {
	err error
}

func (e *creationError) Error() string { return e.err.Error() }
func (e *creationError) Unwrap() error { return e.err }

func isCreationFailure(err error) bool {
	var ce *creationError
	return errors.As(err, &ce)
}

// executeTask dispatches to the supporting factory and runs the
// processor under the per-task timeout.
func (m *TaskWorkerManager) executeTask(ctx context.Context, task *Task) error {
	factory := m.findFactory(task)
	if factory == nil {
		return &creationError{err: fmt.Errorf("no processor factory for task type %q", task.Type)}
	}

	ctx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()

	processor, err := factory.Create(ctx, task)
	if err != nil {
		return &creationError{err: err}
	}
	return processor.Execute(ctx)
}

func (m *TaskWorkerManager) findFactory(task *Task) TaskProcessorFactory {
	for _, f := range m.factories {
		if f.IsSupported(task) {
			return f
		}
	}
	return nil
}
