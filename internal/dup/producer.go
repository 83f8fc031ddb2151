package dup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/workman"
)

// TaskSender enqueues tasks for the workers. Implemented by the queue
// layer.
type TaskSender interface {
	Send(ctx context.Context, task *workman.Task) error
}

// TaskProducer walks the duplication policies on a schedule and enqueues
// one whole-space duplication task per (space, destination) pair. The
// source store is the account's primary provider.
type TaskProducer struct {
	policies    *PolicyManager
	credentials credentials.Repo
	accounts    []string
	sender      TaskSender
	interval    time.Duration
	log         *slog.Logger
}

// NewTaskProducer wires a producer for the given accounts.
func NewTaskProducer(policies *PolicyManager, creds credentials.Repo, accounts []string, sender TaskSender, interval time.Duration) *TaskProducer {
	return &TaskProducer{
		policies:    policies,
		credentials: creds,
		accounts:    accounts,
		sender:      sender,
		interval:    interval,
		log:         slog.With("component", "dup-producer"),
	}
}

// ProduceOnce enqueues one round of whole-space tasks and returns the
// number sent.
func (p *TaskProducer) ProduceOnce(ctx context.Context) (int, error) {
	sent := 0
	for _, accountID := range p.accounts {
		policy := p.policies.Policy(accountID)
		if policy == nil {
			continue
		}
		account, err := p.credentials.Resolve(ctx, accountID)
		if err != nil {
			p.log.Error("skipping account without credentials", "account", accountID, "error", err)
			continue
		}
		primary, ok := account.Primary()
		if !ok {
			p.log.Error("skipping account without primary provider", "account", accountID)
			continue
		}
		for _, spaceID := range policy.Spaces() {
			for _, sp := range policy.StorePolicies(spaceID) {
				task := &workman.Task{
					Type: workman.TaskTypeDup,
					Properties: map[string]string{
						propAccount:       accountID,
						propSourceStoreID: primary.ProviderID,
						propDestStoreID:   sp.DestStoreID,
						propSpaceID:       spaceID,
						propDestSpaceID:   sp.DestSpaceID,
					},
				}
				if err := p.sender.Send(ctx, task); err != nil {
					return sent, fmt.Errorf("enqueue dup task for %s/%s: %w", accountID, spaceID, err)
				}
				sent++
			}
		}
	}
	p.log.Info("duplication round enqueued", "tasks", sent)
	return sent, nil
}

// Run produces task rounds on the configured interval until the context
// is canceled.
func (p *TaskProducer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProduceOnce(ctx); err != nil {
				p.log.Error("duplication round failed", "error", err)
			}
		}
	}
}
