// Package bitlog is the append-only record of bit-integrity check
// results: whether stored content's checksum still matches its expected
// value over time.
package bitlog

import (
	"context"
	"time"
)

// Result classifies one bit-integrity check.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultError   Result = "ERROR" // check could not be performed
)

// Item is one recorded bit-integrity check.
type Item struct {
	ID               int64
	Account          string
	StoreID          string
	SpaceID          string
	ContentID        string
	Result           Result
	ContentChecksum  string
	ExpectedChecksum string
	Detail           string
	Timestamp        time.Time
}

// PageRequest selects one page of results.
type PageRequest struct {
	Index int
	Size  int
}

// Page is one page of items plus the total match count.
type Page struct {
	Items      []Item
	Index      int
	TotalCount int64
}

// ItemRepo is the bit-integrity log query contract.
type ItemRepo interface {
	Write(ctx context.Context, item Item) error

	// FindByAccountAndStoreAndSpace returns a page ordered by content ID
	// ascending. Out-of-range pages are empty, not errors.
	FindByAccountAndStoreAndSpace(ctx context.Context, account, storeID, spaceID string, page PageRequest) (*Page, error)

	// FindByAccountAndStoreAndSpaceAndContent returns all checks for one
	// content item ordered by timestamp descending.
	FindByAccountAndStoreAndSpaceAndContent(ctx context.Context, account, storeID, spaceID, contentID string) ([]Item, error)

	// DeleteByAccountAndStoreAndSpace removes a space's items.
	DeleteByAccountAndStoreAndSpace(ctx context.Context, account, storeID, spaceID string) error
}
