// Package storeprovider defines the storage provider capability interface
// and the factory that constructs provider clients from account credentials.
package storeprovider

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrContentNotFound indicates the requested content item does not
	// exist in the given space.
	ErrContentNotFound = errors.New("content not found")

	// ErrUnsupportedProviderType indicates a provider type tag with no
	// registered client implementation. This is a configuration/version
	// mismatch, not a transient condition.
	ErrUnsupportedProviderType = errors.New("unsupported storage provider type")
)

// ContentMetadata describes a stored content item.
type ContentMetadata struct {
	// Checksum is the hex-encoded MD5 of the content body.
	Checksum string
	Size     int64
}

// StorageProvider is the capability contract every backend client
// implements. A space is a named container of content items (a bucket).
type StorageProvider interface {
	// Exists reports whether the content item exists.
	Exists(ctx context.Context, spaceID, contentID string) (bool, error)

	// GetMetadata returns checksum and size for a content item, or an
	// error wrapping ErrContentNotFound.
	GetMetadata(ctx context.Context, spaceID, contentID string) (*ContentMetadata, error)

	// Get opens the content body for reading.
	Get(ctx context.Context, spaceID, contentID string) (io.ReadCloser, error)

	// Put writes the content body and returns the checksum of the
	// written bytes.
	Put(ctx context.Context, spaceID, contentID string, body io.Reader) (string, error)

	// DeleteContent removes a content item.
	DeleteContent(ctx context.Context, spaceID, contentID string) error

	// ListSpace returns the content IDs in a space in lexical order.
	ListSpace(ctx context.Context, spaceID string) ([]string, error)

	// Close releases any underlying connections.
	Close() error
}
