// Package auditlog is the append-only, queryable record of content-level
// duplication outcomes.
package auditlog

import (
	"context"
	"time"
)

// Item is one recorded duplication outcome. Items are append-only; once
// written they are never mutated.
type Item struct {
	ID            int64
	Account       string
	SourceStoreID string
	StoreID       string // destination store the outcome applies to
	SpaceID       string
	ContentID     string
	Result        string
	Checksum      string
	Detail        string
	Timestamp     time.Time
}

// PageRequest selects one page of results.
type PageRequest struct {
	Index int
	Size  int
}

// Page is one page of items plus the total match count. An out-of-range
// page index yields an empty page, not an error.
type Page struct {
	Items      []Item
	Index      int
	TotalCount int64
}

// ItemRepo is the audit log query contract. Writes are at-least-once
// durable; ordering guarantees are per query.
type ItemRepo interface {
	// Write appends one item.
	Write(ctx context.Context, item Item) error

	// FindByAccountAndSpace returns a page of items ordered by content
	// ID ascending, for full listings.
	FindByAccountAndSpace(ctx context.Context, account, spaceID string, page PageRequest) (*Page, error)

	// FindByAccountAndStoreAndSpaceAndContent returns all items for one
	// content item ordered by timestamp descending, latest state first.
	FindByAccountAndStoreAndSpaceAndContent(ctx context.Context, account, storeID, spaceID, contentID string) ([]Item, error)

	// DeleteByAccountAndStoreAndSpace removes a space's items on
	// policy/space teardown.
	DeleteByAccountAndStoreAndSpace(ctx context.Context, account, storeID, spaceID string) error
}
