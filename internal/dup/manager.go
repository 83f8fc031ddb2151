package dup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// policy buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// policy buckets
	"gocloud.dev/gcerrors"
)

// PolicySource loads the serialized duplication policy for an account.
type PolicySource interface {
	// LoadPolicy returns the policy document, or (nil, nil) when the
	// account has no policy.
	LoadPolicy(ctx context.Context, accountID string) ([]byte, error)
	Close() error
}

// BucketPolicySource reads policy documents from a blob bucket, one
// <account>-duplication-policy.json object per account.
type BucketPolicySource struct {
	bucket *blob.Bucket
}

// NewBucketPolicySource opens the policy bucket from a gocloud URL
// (s3://..., file://...).
func NewBucketPolicySource(ctx context.Context, bucketURL string) (*BucketPolicySource, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open policy bucket %s: %w", bucketURL, err)
	}
	return &BucketPolicySource{bucket: bucket}, nil
}

func (s *BucketPolicySource) LoadPolicy(ctx context.Context, accountID string) ([]byte, error) {
	key := accountID + "-duplication-policy.json"
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("open policy %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", key, err)
	}
	return data, nil
}

func (s *BucketPolicySource) Close() error {
	return s.bucket.Close()
}

// policySnapshot is an immutable account → policy map.
type policySnapshot struct {
	policies map[string]*Policy
}

// PolicyManager keeps the per-account duplication policies loaded and
// periodically refreshed. Readers see an atomically swapped immutable
// snapshot and never block on a refresh in progress.
type PolicyManager struct {
	source   PolicySource
	accounts []string
	interval time.Duration
	log      *slog.Logger

	current atomic.Pointer[policySnapshot]
}

// NewPolicyManager creates a manager for the given accounts. Call Refresh
// once before serving reads, then Run to keep policies current.
func NewPolicyManager(source PolicySource, accounts []string, interval time.Duration) *PolicyManager {
	m := &PolicyManager{
		source:   source,
		accounts: accounts,
		interval: interval,
		log:      slog.With("component", "policy-manager"),
	}
	m.current.Store(&policySnapshot{policies: map[string]*Policy{}})
	return m
}

// Policy returns the current policy for an account, or nil if the account
// has none. Safe for concurrent use.
func (m *PolicyManager) Policy(accountID string) *Policy {
	return m.current.Load().policies[accountID]
}

// Refresh loads every account's policy and publishes a new snapshot. An
// account whose document is missing is skipped (its spaces are not
// replicated); a malformed document keeps the previous policy for that
// account.
func (m *PolicyManager) Refresh(ctx context.Context) error {
	prev := m.current.Load()
	next := make(map[string]*Policy, len(m.accounts))
	for _, accountID := range m.accounts {
		data, err := m.source.LoadPolicy(ctx, accountID)
		if err != nil {
			return fmt.Errorf("load policy for account %s: %w", accountID, err)
		}
		if data == nil {
			m.log.Debug("no duplication policy", "account", accountID)
			continue
		}
		policy, err := UnmarshallPolicy(data)
		if err != nil {
			m.log.Error("skipping malformed policy", "account", accountID, "error", err)
			if old, ok := prev.policies[accountID]; ok {
				next[accountID] = old
			}
			continue
		}
		next[accountID] = policy
	}
	m.current.Store(&policySnapshot{policies: next})
	m.log.Info("policies refreshed", "accounts", len(next))
	return nil
}

// Run refreshes policies on the configured interval until the context is
// canceled.
func (m *PolicyManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.Error("policy refresh failed", "error", err)
			}
		}
	}
}
