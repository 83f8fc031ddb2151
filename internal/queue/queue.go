// Package queue provides the task queue implementations: Amazon SQS for
// deployments and an in-process queue for tests and local runs. Both
// satisfy workman.TaskQueue.
package queue
