package dup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/workman"
)

// mapPolicySource serves policy documents from a map.
type mapPolicySource struct {
	docs map[string][]byte
	err  error
}

func (s *mapPolicySource) LoadPolicy(ctx context.Context, accountID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.docs[accountID], nil
}

func (s *mapPolicySource) Close() error { return nil }

func TestPolicyManagerRefresh(t *testing.T) {
	source := &mapPolicySource{docs: map[string][]byte{
		"acme": []byte(`{"photos":[{"storeId":"providerX","spaceId":"photos-backup"}]}`),
	}}
	m := NewPolicyManager(source, []string{"acme", "other"}, time.Minute)

	if m.Policy("acme") != nil {
		t.Fatal("policy should be nil before first refresh")
	}
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	policy := m.Policy("acme")
	if policy == nil {
		t.Fatal("expected a policy after refresh")
	}
	got := policy.StorePolicies("photos")
	if len(got) != 1 || got[0].DestStoreID != "providerX" {
		t.Errorf("unexpected policies: %+v", got)
	}
	if m.Policy("other") != nil {
		t.Error("account without a document should have no policy")
	}
}

func TestPolicyManagerMalformedKeepsPrevious(t *testing.T) {
	source := &mapPolicySource{docs: map[string][]byte{
		"acme": []byte(`{"photos":[{"storeId":"providerX","spaceId":"photos-backup"}]}`),
	}}
	m := NewPolicyManager(source, []string{"acme"}, time.Minute)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	source.docs["acme"] = []byte("{broken")
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh with malformed document failed: %v", err)
	}

	policy := m.Policy("acme")
	if policy == nil {
		t.Fatal("malformed document should keep the previous policy")
	}
	if got := policy.StorePolicies("photos"); len(got) != 1 {
		t.Errorf("expected previous policy to survive, got %+v", got)
	}
}

func TestPolicyManagerSourceError(t *testing.T) {
	wantErr := errors.New("bucket unreachable")
	m := NewPolicyManager(&mapPolicySource{err: wantErr}, []string{"acme"}, time.Minute)
	if err := m.Refresh(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected source error to propagate, got %v", err)
	}
}

// captureSender records sent tasks.
type captureSender struct {
	tasks []*workman.Task
	err   error
}

func (s *captureSender) Send(ctx context.Context, task *workman.Task) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

func TestProducerEnqueuesPerSpaceDestination(t *testing.T) {
	source := &mapPolicySource{docs: map[string][]byte{
		"acme": []byte(`{
			"photos":[{"storeId":"providerX","spaceId":"photos-backup"},
			          {"storeId":"providerY","spaceId":"photos-dr"}],
			"docs":[{"storeId":"providerX","spaceId":"docs-backup"}]
		}`),
	}}
	policies := NewPolicyManager(source, []string{"acme"}, time.Minute)
	if err := policies.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	repo := credentials.NewSnapshotRepo(testAccounts())
	sender := &captureSender{}
	producer := NewTaskProducer(policies, repo, []string{"acme"}, sender, time.Hour)

	sent, err := producer.ProduceOnce(context.Background())
	if err != nil {
		t.Fatalf("ProduceOnce failed: %v", err)
	}
	if sent != 3 {
		t.Fatalf("expected 3 tasks, got %d", sent)
	}
	wantDestSpaces := map[string]string{
		"photos/providerX": "photos-backup",
		"photos/providerY": "photos-dr",
		"docs/providerX":   "docs-backup",
	}
	for _, task := range sender.tasks {
		if task.Type != workman.TaskTypeDup {
			t.Errorf("unexpected task type %q", task.Type)
		}
		if task.Property(propSourceStoreID) != "primary" {
			t.Errorf("source store should be the primary provider, got %q", task.Property(propSourceStoreID))
		}
		if task.Property(propContentID) != "" {
			t.Error("whole-space tasks must not carry a content ID")
		}
		key := task.Property(propSpaceID) + "/" + task.Property(propDestStoreID)
		if got := task.Property(propDestSpaceID); got != wantDestSpaces[key] {
			t.Errorf("%s: destination space %q, want %q", key, got, wantDestSpaces[key])
		}
	}
}

func TestProducerSkipsAccountWithoutPolicy(t *testing.T) {
	policies := NewPolicyManager(&mapPolicySource{}, []string{"acme"}, time.Minute)
	if err := policies.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	sender := &captureSender{}
	producer := NewTaskProducer(policies, credentials.NewSnapshotRepo(testAccounts()), []string{"acme"}, sender, time.Hour)

	sent, err := producer.ProduceOnce(context.Background())
	if err != nil {
		t.Fatalf("ProduceOnce failed: %v", err)
	}
	if sent != 0 || len(sender.tasks) != 0 {
		t.Errorf("expected no tasks, got %d", sent)
	}
}
