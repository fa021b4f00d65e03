package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory CredentialStore for tests. Besides the accounts
// it keeps every device id an account has been stored with, so callers can
// check that rotated ids are persisted.
type MockStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	deviceIDs map[string][]string

	// StoreError, when set, is returned by Store without saving anything
	StoreError error
}

// NewMockStore creates an empty store
func NewMockStore() *MockStore {
	return &MockStore{
		accounts:  make(map[string]Account),
		deviceIDs: make(map[string][]string),
	}
}

// NewMockManager creates a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.deviceIDs[account.Name]
	if account.DeviceID != "" && (len(history) == 0 || history[len(history)-1] != account.DeviceID) {
		m.deviceIDs[account.Name] = append(history, account.DeviceID)
	}
	m.accounts[account.Name] = *account
	return nil
}

func (m *MockStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}
	account, ok := m.Account(name)
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MockStore) List() ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		acc := account
		out = append(out, &acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, name)
	delete(m.deviceIDs, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	_, ok := m.Account(name)
	return ok
}

// Account returns a copy of the stored account
func (m *MockStore) Account(name string) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[name]
	return account, ok
}

// DeviceIDs lists the distinct device ids stored for name, oldest first
func (m *MockStore) DeviceIDs(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deviceIDs[name]...)
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
