package bit

import (
	"context"
	"fmt"

	"github.com/4Science/mill/internal/bitlog"
	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/storeprovider"
	"github.com/4Science/mill/internal/workman"
)

// TaskProcessorFactory builds bit-integrity task processors.
type TaskProcessorFactory struct {
	credentials credentials.Repo
	providers   *storeprovider.Factory
	repo        bitlog.ItemRepo
}

// NewTaskProcessorFactory wires the factory.
func NewTaskProcessorFactory(repo credentials.Repo, providers *storeprovider.Factory, bitRepo bitlog.ItemRepo) *TaskProcessorFactory {
	return &TaskProcessorFactory{
		credentials: repo,
		providers:   providers,
		repo:        bitRepo,
	}
}

// IsSupported implements workman.TaskProcessorFactory.
func (f *TaskProcessorFactory) IsSupported(task *workman.Task) bool {
	return task.Type == workman.TaskTypeBit
}

// Create implements workman.TaskProcessorFactory.
func (f *TaskProcessorFactory) Create(ctx context.Context, task *workman.Task) (workman.TaskProcessor, error) {
	btask, err := ReadTask(task)
	if err != nil {
		return nil, err
	}

	account, err := f.credentials.Resolve(ctx, btask.Account)
	if err != nil {
		return nil, fmt.Errorf("create bit integrity processor: %w", err)
	}
	provider, err := f.providers.Create(btask.StoreID, account)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return NewTaskProcessor(btask, provider, f.repo), nil
}
