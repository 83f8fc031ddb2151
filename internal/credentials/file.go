package credentials

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type accountEntry struct {
	AccountID string                `yaml:"account_id"`
	Providers []ProviderCredentials `yaml:"providers"`
}

type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

// LoadAccounts reads account credentials from a YAML file. Each account
// may mark at most one provider primary.
func LoadAccounts(path string) ([]*AccountCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	accounts := make([]*AccountCredentials, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		if entry.AccountID == "" {
			return nil, fmt.Errorf("credentials %s: account with empty account_id", path)
		}
		primaries := 0
		for _, p := range entry.Providers {
			if p.Primary {
				primaries++
			}
		}
		if primaries > 1 {
			return nil, fmt.Errorf("account %s: %d providers marked primary", entry.AccountID, primaries)
		}
		accounts = append(accounts, NewAccountCredentials(entry.AccountID, entry.Providers))
	}
	return accounts, nil
}
