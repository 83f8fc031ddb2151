// Package credentials holds the per-account storage provider credentials
// used to construct provider clients.
package credentials

import (
	"errors"
	"fmt"
	"sort"
)

// ProviderType identifies a supported storage backend technology.
type ProviderType string

const (
	ProviderTypeAmazonS3      ProviderType = "amazon-s3"
	ProviderTypeAmazonGlacier ProviderType = "amazon-glacier"
	ProviderTypeSDSC          ProviderType = "sdsc"
	ProviderTypeRackspace     ProviderType = "rackspace"
	ProviderTypeLocal         ProviderType = "local"
)

var (
	// ErrAccountCredentialsNotFound indicates the account has not been
	// onboarded. Not retryable.
	ErrAccountCredentialsNotFound = errors.New("account credentials not found")

	// ErrProviderCredentialsNotFound indicates the account has no entry
	// for the requested provider. Not retryable.
	ErrProviderCredentialsNotFound = errors.New("provider credentials not found")
)

// ProviderCredentials contains everything needed to connect to a single
// storage provider. Values are immutable once handed to a task.
type ProviderCredentials struct {
	ProviderID   string       `yaml:"provider_id" json:"providerId"`
	AccessKey    string       `yaml:"access_key" json:"accessKey"`
	SecretKey    string       `yaml:"secret_key" json:"secretKey"`
	ProviderType ProviderType `yaml:"provider_type" json:"providerType"`
	Primary      bool         `yaml:"primary" json:"primary"`

	// Endpoint is set for S3-compatible providers reachable through a
	// non-AWS gateway (SDSC, Rackspace, MinIO-style deployments).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Region for providers that require one.
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

// AccountCredentials is the full set of provider credentials for one
// account. At most one entry is marked primary.
type AccountCredentials struct {
	AccountID string
	providers map[string]ProviderCredentials
}

// NewAccountCredentials builds an AccountCredentials from the given
// provider entries. Later entries with a duplicate provider ID overwrite
// earlier ones.
func NewAccountCredentials(accountID string, providers []ProviderCredentials) *AccountCredentials {
	m := make(map[string]ProviderCredentials, len(providers))
	for _, p := range providers {
		m[p.ProviderID] = p
	}
	return &AccountCredentials{AccountID: accountID, providers: m}
}

// ProviderCredentials returns the credentials for the given provider ID.
func (a *AccountCredentials) ProviderCredentials(providerID string) (ProviderCredentials, error) {
	c, ok := a.providers[providerID]
	if !ok {
		return ProviderCredentials{}, fmt.Errorf(
			"account %s, provider %s: %w", a.AccountID, providerID, ErrProviderCredentialsNotFound)
	}
	return c, nil
}

// Primary returns the account's primary provider credentials, if any.
// Provider IDs are scanned in sorted order, so the result is stable even
// for credential sets that slipped past validation with more than one
// primary flag.
func (a *AccountCredentials) Primary() (ProviderCredentials, bool) {
	for _, id := range a.ProviderIDs() {
		if c := a.providers[id]; c.Primary {
			return c, true
		}
	}
	return ProviderCredentials{}, false
}

// ProviderIDs returns the IDs of all providers configured for the
// account, sorted.
func (a *AccountCredentials) ProviderIDs() []string {
	ids := make([]string, 0, len(a.providers))
	for id := range a.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
