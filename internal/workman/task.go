// Package workman provides the generic task model and the worker pool
// that pulls tasks from a queue and drives them through task processors.
package workman

import (
	"context"
)

// TaskType tags the kind of work a queue message describes.
type TaskType string

const (
	TaskTypeDup TaskType = "dup"
	TaskTypeBit TaskType = "bit"
)

// Task is a unit of work as delivered by the queue. Properties carry the
// task-type specific fields; Handle is the opaque receipt used to
// acknowledge or requeue the message.
type Task struct {
	Type       TaskType
	Properties map[string]string
	Handle     string
}

// Property returns the named property, or "" when absent.
func (t *Task) Property(name string) string {
	if t.Properties == nil {
		return ""
	}
	return t.Properties[name]
}

// TaskProcessor performs one attempt of one task. There is no retry loop
// inside a processor; an error return hands retry policy back to the
// queue layer.
type TaskProcessor interface {
	Execute(ctx context.Context) error
}

// TaskProcessorFactory builds processors for the task types it supports.
// A creation error is a configuration problem (missing credentials,
// unsupported provider, malformed task) and is never retried.
type TaskProcessorFactory interface {
	IsSupported(task *Task) bool
	Create(ctx context.Context, task *Task) (TaskProcessor, error)
}
