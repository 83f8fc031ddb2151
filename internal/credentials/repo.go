package credentials

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Repo resolves account credentials. Implementations must be safe for
// unsynchronized concurrent reads from many workers.
type Repo interface {
	// Resolve returns the credentials for the given account, or an error
	// wrapping ErrAccountCredentialsNotFound.
	Resolve(ctx context.Context, accountID string) (*AccountCredentials, error)
}

// snapshot is an immutable account → credentials map.
type snapshot struct {
	accounts map[string]*AccountCredentials
}

// SnapshotRepo is an in-memory Repo backed by an atomically swapped
// immutable snapshot. Readers never take a lock; a refresh publishes a
// whole new snapshot via Publish.
type SnapshotRepo struct {
	current atomic.Pointer[snapshot]
}

// NewSnapshotRepo creates a repo populated with the given accounts.
func NewSnapshotRepo(accounts []*AccountCredentials) *SnapshotRepo {
	r := &SnapshotRepo{}
	r.Publish(accounts)
	return r
}

// Publish atomically replaces the full credential set. In-flight readers
// keep the snapshot they already resolved against.
func (r *SnapshotRepo) Publish(accounts []*AccountCredentials) {
	m := make(map[string]*AccountCredentials, len(accounts))
	for _, a := range accounts {
		m[a.AccountID] = a
	}
	r.current.Store(&snapshot{accounts: m})
}

// Resolve implements Repo.
func (r *SnapshotRepo) Resolve(ctx context.Context, accountID string) (*AccountCredentials, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrAccountCredentialsNotFound)
	}
	a, ok := snap.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrAccountCredentialsNotFound)
	}
	return a, nil
}
