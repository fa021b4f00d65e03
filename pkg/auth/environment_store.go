package auth

import (
	"os"
	"time"
)

const (
	envToken     = "FANSLYDL_TOKEN"
	envUserAgent = "FANSLYDL_USER_AGENT"
	// EnvironmentAccount is the name reported for a token taken from the environment
	EnvironmentAccount = "environment"
)

// EnvironmentStore is a read-only CredentialStore over FANSLYDL_TOKEN
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token. The name is ignored unless it
// asks for a different account than EnvironmentAccount.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if name != "" && name != EnvironmentAccount {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         EnvironmentAccount,
		Token:        token,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the token variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
