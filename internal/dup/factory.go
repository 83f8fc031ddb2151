package dup

import (
	"context"
	"fmt"

	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/storeprovider"
	"github.com/4Science/mill/internal/workman"
)

// TaskProcessorFactory builds duplication task processors. Credential and
// provider resolution happen here, before any storage I/O, so that
// configuration problems surface as non-retryable creation failures.
type TaskProcessorFactory struct {
	credentials credentials.Repo
	providers   *storeprovider.Factory
	outcomes    OutcomeWriter
}

// NewTaskProcessorFactory wires the factory. The credential repo and
// provider factory are shared, read-only collaborators.
func NewTaskProcessorFactory(repo credentials.Repo, providers *storeprovider.Factory, outcomes OutcomeWriter) *TaskProcessorFactory {
	return &TaskProcessorFactory{
		credentials: repo,
		providers:   providers,
		outcomes:    outcomes,
	}
}

// IsSupported implements workman.TaskProcessorFactory.
func (f *TaskProcessorFactory) IsSupported(task *workman.Task) bool {
	return task.Type == workman.TaskTypeDup
}

// Create implements workman.TaskProcessorFactory. Any error here is a
// configuration failure: a malformed task, an account that has not been
// onboarded, or a provider type with no client implementation.
func (f *TaskProcessorFactory) Create(ctx context.Context, task *workman.Task) (workman.TaskProcessor, error) {
	dtask, err := ReadTask(task)
	if err != nil {
		return nil, err
	}

	account, err := f.credentials.Resolve(ctx, dtask.Account)
	if err != nil {
		return nil, fmt.Errorf("create duplication processor: %w", err)
	}

	source, err := f.providers.Create(dtask.SourceStoreID, account)
	if err != nil {
		return nil, fmt.Errorf("create source provider: %w", err)
	}
	dest, err := f.providers.Create(dtask.DestStoreID, account)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("create destination provider: %w", err)
	}

	return NewTaskProcessor(dtask, source, dest, f.outcomes), nil
}
