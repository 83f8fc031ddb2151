package storeprovider

import (
	"fmt"

	"github.com/4Science/mill/internal/credentials"
)

// Constructor builds a provider client from one set of provider
// credentials.
type Constructor func(creds credentials.ProviderCredentials) (StorageProvider, error)

// Factory constructs storage provider clients. Dispatch is a registration
// table keyed by provider type, so adding a backend is a Register call
// rather than a growing conditional. The factory is stateless apart from
// the table, which is fixed after construction; Create is safe for
// concurrent use and returns an independent client per call.
type Factory struct {
	constructors map[credentials.ProviderType]Constructor
}

// NewFactory returns a factory with the standard backend set registered:
// Amazon S3, Amazon Glacier, and the SDSC and Rackspace S3-compatible
// gateways. The local filesystem backend is registered separately via
// RegisterLocal since it needs a base directory.
func NewFactory() *Factory {
	f := &Factory{constructors: make(map[credentials.ProviderType]Constructor)}
	f.Register(credentials.ProviderTypeAmazonS3, newS3Provider)
	f.Register(credentials.ProviderTypeAmazonGlacier, newGlacierProvider)
	f.Register(credentials.ProviderTypeSDSC, newS3CompatibleProvider)
	f.Register(credentials.ProviderTypeRackspace, newS3CompatibleProvider)
	return f
}

// Register installs a constructor for the given provider type, replacing
// any existing registration. Not safe to call concurrently with Create.
func (f *Factory) Register(t credentials.ProviderType, c Constructor) {
	f.constructors[t] = c
}

// RegisterLocal installs the local filesystem backend rooted at baseDir.
func (f *Factory) RegisterLocal(baseDir string) {
	f.Register(credentials.ProviderTypeLocal, func(creds credentials.ProviderCredentials) (StorageProvider, error) {
		return newLocalProvider(baseDir)
	})
}

// Create looks up the provider credentials for providerID within the
// account and constructs the matching backend client. An unrecognized
// provider type fails with ErrUnsupportedProviderType.
func (f *Factory) Create(providerID string, account *credentials.AccountCredentials) (StorageProvider, error) {
	creds, err := account.ProviderCredentials(providerID)
	if err != nil {
		return nil, err
	}
	ctor, ok := f.constructors[creds.ProviderType]
	if !ok {
		return nil, fmt.Errorf("provider %s type %q: %w",
			providerID, creds.ProviderType, ErrUnsupportedProviderType)
	}
	client, err := ctor(creds)
	if err != nil {
		return nil, fmt.Errorf("create %s client for provider %s: %w",
			creds.ProviderType, providerID, err)
	}
	return client, nil
}
