package storeprovider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/4Science/mill/internal/credentials"
)

// blobProvider implements StorageProvider over gocloud.dev buckets, one
// bucket per space, opened lazily and cached for the provider's lifetime.
type blobProvider struct {
	openSpace  func(ctx context.Context, spaceID string) (*blob.Bucket, error)
	writerOpts *blob.WriterOptions

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

func newBlobProvider(open func(ctx context.Context, spaceID string) (*blob.Bucket, error), writerOpts *blob.WriterOptions) *blobProvider {
	return &blobProvider{
		openSpace:  open,
		writerOpts: writerOpts,
		buckets:    make(map[string]*blob.Bucket),
	}
}

func (p *blobProvider) bucket(ctx context.Context, spaceID string) (*blob.Bucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[spaceID]; ok {
		return b, nil
	}
	b, err := p.openSpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("open space %s: %w", spaceID, err)
	}
	p.buckets[spaceID] = b
	return b, nil
}

func (p *blobProvider) Exists(ctx context.Context, spaceID, contentID string) (bool, error) {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, contentID)
}

func (p *blobProvider) GetMetadata(ctx context.Context, spaceID, contentID string) (*ContentMetadata, error) {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	attrs, err := b.Attributes(ctx, contentID)
	if err != nil {
		return nil, mapContentErr(err, spaceID, contentID)
	}
	meta := &ContentMetadata{Size: attrs.Size}
	if len(attrs.MD5) > 0 {
		meta.Checksum = hex.EncodeToString(attrs.MD5)
		return meta, nil
	}
	// Backend did not report a content MD5 (multipart uploads, some
	// S3-compatible gateways). Fall back to reading the body.
	checksum, err := p.computeChecksum(ctx, b, spaceID, contentID)
	if err != nil {
		return nil, err
	}
	meta.Checksum = checksum
	return meta, nil
}

func (p *blobProvider) computeChecksum(ctx context.Context, b *blob.Bucket, spaceID, contentID string) (string, error) {
	r, err := b.NewReader(ctx, contentID, nil)
	if err != nil {
		return "", mapContentErr(err, spaceID, contentID)
	}
	defer r.Close()
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read %s/%s for checksum: %w", spaceID, contentID, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (p *blobProvider) Get(ctx context.Context, spaceID, contentID string) (io.ReadCloser, error) {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	r, err := b.NewReader(ctx, contentID, nil)
	if err != nil {
		return nil, mapContentErr(err, spaceID, contentID)
	}
	return r, nil
}

func (p *blobProvider) Put(ctx context.Context, spaceID, contentID string, body io.Reader) (string, error) {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return "", err
	}
	w, err := b.NewWriter(ctx, contentID, p.writerOpts)
	if err != nil {
		return "", fmt.Errorf("create writer for %s/%s: %w", spaceID, contentID, err)
	}
	h := md5.New()
	if _, err := io.Copy(w, io.TeeReader(body, h)); err != nil {
		w.Close()
		return "", fmt.Errorf("write %s/%s: %w", spaceID, contentID, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s/%s: %w", spaceID, contentID, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (p *blobProvider) DeleteContent(ctx context.Context, spaceID, contentID string) error {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, contentID); err != nil {
		return mapContentErr(err, spaceID, contentID)
	}
	return nil
}

func (p *blobProvider) ListSpace(ctx context.Context, spaceID string) ([]string, error) {
	b, err := p.bucket(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	var ids []string
	iter := b.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list space %s: %w", spaceID, err)
		}
		if obj.IsDir {
			continue
		}
		ids = append(ids, obj.Key)
	}
	return ids, nil
}

func (p *blobProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lastErr error
	for id, b := range p.buckets {
		if err := b.Close(); err != nil {
			lastErr = err
		}
		delete(p.buckets, id)
	}
	return lastErr
}

func mapContentErr(err error, spaceID, contentID string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%s/%s: %w", spaceID, contentID, ErrContentNotFound)
	}
	return fmt.Errorf("%s/%s: %w", spaceID, contentID, err)
}

// s3Client builds an S3 client from static provider credentials. Endpoint
// is set for S3-compatible gateways, which also need path-style addressing.
func s3Client(creds credentials.ProviderCredentials) (*s3.Client, error) {
	ctx := context.Background()
	region := creds.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = aws.String(creds.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func newS3ProviderWithOpts(creds credentials.ProviderCredentials, writerOpts *blob.WriterOptions) (StorageProvider, error) {
	client, err := s3Client(creds)
	if err != nil {
		return nil, err
	}
	open := func(ctx context.Context, spaceID string) (*blob.Bucket, error) {
		return s3blob.OpenBucketV2(ctx, client, spaceID, nil)
	}
	return newBlobProvider(open, writerOpts), nil
}

func newS3Provider(creds credentials.ProviderCredentials) (StorageProvider, error) {
	return newS3ProviderWithOpts(creds, nil)
}

// newGlacierProvider is the S3 provider writing with the Glacier storage
// class, matching cold-archive destinations.
func newGlacierProvider(creds credentials.ProviderCredentials) (StorageProvider, error) {
	opts := &blob.WriterOptions{
		BeforeWrite: func(asFunc func(interface{}) bool) error {
			var input *s3.PutObjectInput
			if asFunc(&input) {
				input.StorageClass = s3types.StorageClassGlacier
			}
			return nil
		},
	}
	return newS3ProviderWithOpts(creds, opts)
}

// newS3CompatibleProvider serves providers reachable through an
// S3-compatible gateway (SDSC, Rackspace). The endpoint comes from the
// provider credentials.
func newS3CompatibleProvider(creds credentials.ProviderCredentials) (StorageProvider, error) {
	if creds.Endpoint == "" {
		return nil, fmt.Errorf("provider %s: endpoint required for %s", creds.ProviderID, creds.ProviderType)
	}
	return newS3ProviderWithOpts(creds, nil)
}

// newLocalProvider stores spaces as directories under baseDir.
func newLocalProvider(baseDir string) (StorageProvider, error) {
	open := func(ctx context.Context, spaceID string) (*blob.Bucket, error) {
		return fileblob.OpenBucket(filepath.Join(baseDir, spaceID), &fileblob.Options{CreateDir: true})
	}
	return newBlobProvider(open, nil), nil
}
