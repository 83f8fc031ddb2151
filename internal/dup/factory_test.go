package dup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/storeprovider"
	"github.com/4Science/mill/internal/workman"
)

// countingRepo wraps a SnapshotRepo to count resolutions.
type countingRepo struct {
	inner    credentials.Repo
	mu       sync.Mutex
	resolves int
}

func (r *countingRepo) Resolve(ctx context.Context, accountID string) (*credentials.AccountCredentials, error) {
	r.mu.Lock()
	r.resolves++
	r.mu.Unlock()
	return r.inner.Resolve(ctx, accountID)
}

func memFactory() *storeprovider.Factory {
	f := storeprovider.NewFactory()
	f.Register(credentials.ProviderTypeAmazonS3, func(creds credentials.ProviderCredentials) (storeprovider.StorageProvider, error) {
		return storeprovider.NewMemProvider(), nil
	})
	return f
}

func dupQueueTask(props map[string]string) *workman.Task {
	return &workman.Task{Type: workman.TaskTypeDup, Properties: props}
}

func testAccounts() []*credentials.AccountCredentials {
	return []*credentials.AccountCredentials{
		credentials.NewAccountCredentials("acme", []credentials.ProviderCredentials{
			{ProviderID: "primary", AccessKey: "k", SecretKey: "s", ProviderType: credentials.ProviderTypeAmazonS3, Primary: true},
			{ProviderID: "providerX", AccessKey: "k2", SecretKey: "s2", ProviderType: credentials.ProviderTypeAmazonS3},
			{ProviderID: "tape", AccessKey: "k3", SecretKey: "s3", ProviderType: credentials.ProviderType("tape-silo")},
		}),
	}
}

func TestFactoryCreate(t *testing.T) {
	repo := &countingRepo{inner: credentials.NewSnapshotRepo(testAccounts())}
	f := NewTaskProcessorFactory(repo, memFactory(), &outcomeRecorder{})

	task := dupQueueTask(map[string]string{
		"account":       "acme",
		"sourceStoreId": "primary",
		"destStoreId":   "providerX",
		"spaceId":       "photos",
		"contentId":     "img1.jpg",
	})
	if !f.IsSupported(task) {
		t.Fatal("duplication task should be supported")
	}
	p, err := f.Create(context.Background(), task)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected a processor")
	}
	if repo.resolves != 1 {
		t.Errorf("expected a single credential resolution, got %d", repo.resolves)
	}
}

func TestFactoryRejectsOtherTaskTypes(t *testing.T) {
	f := NewTaskProcessorFactory(credentials.NewSnapshotRepo(nil), memFactory(), &outcomeRecorder{})
	if f.IsSupported(&workman.Task{Type: workman.TaskTypeBit}) {
		t.Error("bit task should not be supported by the duplication factory")
	}
}

func TestFactoryUnknownAccount(t *testing.T) {
	repo := &countingRepo{inner: credentials.NewSnapshotRepo(testAccounts())}
	f := NewTaskProcessorFactory(repo, memFactory(), &outcomeRecorder{})

	task := dupQueueTask(map[string]string{
		"account":       "ghost",
		"sourceStoreId": "primary",
		"destStoreId":   "providerX",
		"spaceId":       "photos",
	})
	_, err := f.Create(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
	if !errors.Is(err, credentials.ErrAccountCredentialsNotFound) {
		t.Errorf("expected ErrAccountCredentialsNotFound, got %v", err)
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewTaskProcessorFactory(credentials.NewSnapshotRepo(testAccounts()), memFactory(), &outcomeRecorder{})

	task := dupQueueTask(map[string]string{
		"account":       "acme",
		"sourceStoreId": "primary",
		"destStoreId":   "nope",
		"spaceId":       "photos",
	})
	_, err := f.Create(context.Background(), task)
	if !errors.Is(err, credentials.ErrProviderCredentialsNotFound) {
		t.Errorf("expected ErrProviderCredentialsNotFound, got %v", err)
	}
}

func TestFactoryUnsupportedProviderType(t *testing.T) {
	f := NewTaskProcessorFactory(credentials.NewSnapshotRepo(testAccounts()), memFactory(), &outcomeRecorder{})

	task := dupQueueTask(map[string]string{
		"account":       "acme",
		"sourceStoreId": "primary",
		"destStoreId":   "tape",
		"spaceId":       "photos",
	})
	_, err := f.Create(context.Background(), task)
	if !errors.Is(err, storeprovider.ErrUnsupportedProviderType) {
		t.Errorf("expected ErrUnsupportedProviderType, got %v", err)
	}
}

func TestFactoryMalformedTask(t *testing.T) {
	f := NewTaskProcessorFactory(credentials.NewSnapshotRepo(testAccounts()), memFactory(), &outcomeRecorder{})

	for _, missing := range []string{"account", "sourceStoreId", "destStoreId", "spaceId"} {
		props := map[string]string{
			"account":       "acme",
			"sourceStoreId": "primary",
			"destStoreId":   "providerX",
			"spaceId":       "photos",
		}
		delete(props, missing)
		_, err := f.Create(context.Background(), dupQueueTask(props))
		if !errors.Is(err, ErrMalformedTask) {
			t.Errorf("missing %s: expected ErrMalformedTask, got %v", missing, err)
		}
	}

	// ContentID is optional: its absence means whole-space duplication.
	task, err := ReadTask(dupQueueTask(map[string]string{
		"account":       "acme",
		"sourceStoreId": "primary",
		"destStoreId":   "providerX",
		"spaceId":       "photos",
	}))
	if err != nil {
		t.Fatalf("task without contentId should be valid: %v", err)
	}
	if task.ContentID != "" {
		t.Errorf("expected empty ContentID, got %q", task.ContentID)
	}

	// DestSpaceID is optional too: absence means the destination space
	// mirrors the source space name.
	if got := task.destSpace(); got != "photos" {
		t.Errorf("destination space should default to the source space, got %q", got)
	}
	task, err = ReadTask(dupQueueTask(map[string]string{
		"account":       "acme",
		"sourceStoreId": "primary",
		"destStoreId":   "providerX",
		"spaceId":       "photos",
		"destSpaceId":   "photos-backup",
	}))
	if err != nil {
		t.Fatalf("task with destSpaceId should be valid: %v", err)
	}
	if task.destSpace() != "photos-backup" {
		t.Errorf("destination space %q, want photos-backup", task.destSpace())
	}
}
