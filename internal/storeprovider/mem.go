package storeprovider

import (
	"context"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// NewMemProvider returns an in-process provider backed by memblob, one
// bucket per space. Spaces spring into existence on first use; Close
// discards all contents, so a reused provider starts empty. Intended for
// tests and local development.
func NewMemProvider() StorageProvider {
	open := func(ctx context.Context, spaceID string) (*blob.Bucket, error) {
		return memblob.OpenBucket(nil), nil
	}
	return newBlobProvider(open, nil)
}
