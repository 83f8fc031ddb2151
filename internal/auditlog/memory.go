package auditlog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory ItemRepo for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	items  []Item
	nextID int64
}

// NewMemoryRepo returns an empty repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1}
}

// Write implements ItemRepo.
func (r *MemoryRepo) Write(ctx context.Context, item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextID
	r.nextID++
	r.items = append(r.items, item)
	return nil
}

// FindByAccountAndSpace implements ItemRepo.
func (r *MemoryRepo) FindByAccountAndSpace(ctx context.Context, account, spaceID string, page PageRequest) (*Page, error) {
	if page.Size <= 0 {
		page.Size = 50
	}
	if page.Index < 0 {
		page.Index = 0
	}

	r.mu.Lock()
	var matched []Item
	for _, it := range r.items {
		if it.Account == account && it.SpaceID == spaceID {
			matched = append(matched, it)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ContentID != matched[j].ContentID {
			return matched[i].ContentID < matched[j].ContentID
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	start := page.Index * page.Size
	if start >= len(matched) {
		return &Page{Index: page.Index, TotalCount: total}, nil
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return &Page{Items: matched[start:end], Index: page.Index, TotalCount: total}, nil
}

// FindByAccountAndStoreAndSpaceAndContent implements ItemRepo.
func (r *MemoryRepo) FindByAccountAndStoreAndSpaceAndContent(ctx context.Context, account, storeID, spaceID, contentID string) ([]Item, error) {
	r.mu.Lock()
	var matched []Item
	for _, it := range r.items {
		if it.Account == account && it.StoreID == storeID && it.SpaceID == spaceID && it.ContentID == contentID {
			matched = append(matched, it)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	return matched, nil
}

// DeleteByAccountAndStoreAndSpace implements ItemRepo.
func (r *MemoryRepo) DeleteByAccountAndStoreAndSpace(ctx context.Context, account, storeID, spaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, it := range r.items {
		if it.Account == account && it.StoreID == storeID && it.SpaceID == spaceID {
			continue
		}
		kept = append(kept, it)
	}
	r.items = kept
	return nil
}
