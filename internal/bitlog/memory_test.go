package bitlog

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedRepo(t *testing.T, repo ItemRepo, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := repo.Write(context.Background(), Item{
			Account:          "acme",
			StoreID:          "primary",
			SpaceID:          "photos",
			ContentID:        fmt.Sprintf("img%03d.jpg", i),
			Result:           ResultSuccess,
			ContentChecksum:  "abc",
			ExpectedChecksum: "abc",
			Timestamp:        base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
}

func TestFindByStoreAndSpacePagination(t *testing.T) {
	repo := NewMemoryRepo()
	seedRepo(t, repo, 12)
	repo.Write(context.Background(), Item{Account: "acme", StoreID: "other", SpaceID: "photos", ContentID: "x"})

	sizes := []int{5, 5, 2, 0}
	for idx, want := range sizes {
		page, err := repo.FindByAccountAndStoreAndSpace(context.Background(), "acme", "primary", "photos", PageRequest{Index: idx, Size: 5})
		if err != nil {
			t.Fatalf("page %d: %v", idx, err)
		}
		if len(page.Items) != want {
			t.Errorf("page %d: expected %d items, got %d", idx, want, len(page.Items))
		}
		if page.TotalCount != 12 {
			t.Errorf("page %d: expected total 12, got %d", idx, page.TotalCount)
		}
	}
}

func TestFindByContentHistoryLatestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	results := []Result{ResultSuccess, ResultSuccess, ResultFailure}
	for i, res := range results {
		repo.Write(context.Background(), Item{
			Account: "acme", StoreID: "primary", SpaceID: "photos", ContentID: "img1.jpg",
			Result: res, Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	items, err := repo.FindByAccountAndStoreAndSpaceAndContent(context.Background(), "acme", "primary", "photos", "img1.jpg")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Result != ResultFailure {
		t.Errorf("latest check should come first, got %s", items[0].Result)
	}
}

func TestDeleteBySpace(t *testing.T) {
	repo := NewMemoryRepo()
	seedRepo(t, repo, 4)
	repo.Write(context.Background(), Item{Account: "acme", StoreID: "primary", SpaceID: "docs", ContentID: "keep"})

	if err := repo.DeleteByAccountAndStoreAndSpace(context.Background(), "acme", "primary", "photos"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	page, err := repo.FindByAccountAndStoreAndSpace(context.Background(), "acme", "primary", "docs", PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("other space should survive, got %d items", page.TotalCount)
	}
	gone, err := repo.FindByAccountAndStoreAndSpace(context.Background(), "acme", "primary", "photos", PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if gone.TotalCount != 0 {
		t.Errorf("deleted space should be empty, got %d items", gone.TotalCount)
	}
}
