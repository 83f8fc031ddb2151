package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/dup"
	"github.com/4Science/mill/internal/storeprovider"
)

// Exporter periodically exports the audit trail of every policy-covered
// space into the designated audit-log space on each account's primary
// provider.
type Exporter struct {
	repo        ItemRepo
	credentials credentials.Repo
	providers   *storeprovider.Factory
	policies    *dup.PolicyManager
	accounts    []string
	logSpace    string
	interval    time.Duration
	log         *slog.Logger
}

// NewExporter wires an exporter for the given accounts.
func NewExporter(repo ItemRepo, creds credentials.Repo, providers *storeprovider.Factory, policies *dup.PolicyManager, accounts []string, logSpace string, interval time.Duration) *Exporter {
	return &Exporter{
		repo:        repo,
		credentials: creds,
		providers:   providers,
		policies:    policies,
		accounts:    accounts,
		logSpace:    logSpace,
		interval:    interval,
		log:         slog.With("component", "auditlog-exporter"),
	}
}

// ExportOnce generates one log file per (account, space) covered by a
// duplication policy and returns the number of files written. Accounts
// that cannot be exported are skipped, not fatal.
func (e *Exporter) ExportOnce(ctx context.Context) (int, error) {
	written := 0
	for _, accountID := range e.accounts {
		policy := e.policies.Policy(accountID)
		if policy == nil {
			continue
		}
		n, err := e.exportAccount(ctx, accountID, policy)
		written += n
		if err != nil {
			e.log.Error("account export incomplete", "account", accountID, "error", err)
		}
	}
	e.log.Info("audit log export round complete", "files", written)
	return written, nil
}

func (e *Exporter) exportAccount(ctx context.Context, accountID string, policy *dup.Policy) (int, error) {
	account, err := e.credentials.Resolve(ctx, accountID)
	if err != nil {
		return 0, err
	}
	primary, ok := account.Primary()
	if !ok {
		return 0, fmt.Errorf("account %s has no primary provider", accountID)
	}
	provider, err := e.providers.Create(primary.ProviderID, account)
	if err != nil {
		return 0, err
	}
	defer provider.Close()

	gen := NewGenerator(e.repo, provider, e.logSpace)
	written := 0
	for _, spaceID := range policy.Spaces() {
		if _, err := gen.Generate(ctx, accountID, spaceID); err != nil {
			return written, fmt.Errorf("space %s: %w", spaceID, err)
		}
		written++
	}
	return written, nil
}

// Run exports on the configured interval until the context is canceled.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.ExportOnce(ctx); err != nil {
				e.log.Error("audit log export failed", "error", err)
			}
		}
	}
}
