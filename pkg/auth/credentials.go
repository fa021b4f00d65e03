package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"fanslydl/pkg/config"

	"github.com/spf13/afero"
)

// DefaultAccount is the name used when none is given
const DefaultAccount = "default"

// Account is a stored authorization token
type Account struct {
	Name      string `json:"name"`
	Token     string `json:"token"`
	UserAgent string `json:"user_agent,omitempty"`
	// DeviceID caches the last device id issued for this token
	DeviceID          string    `json:"device_id,omitempty"`
	DeviceIDTimestamp int64     `json:"device_id_timestamp,omitempty"`
	LastModified      time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(name string) (*Account, error)
	List() ([]*Account, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager over the keyring, an encrypted
// file in the config directory and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fs := afero.NewOsFs()
	passphrase, err := loadPassphrase(fs, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	stores = append(stores, NewEncryptedFileStore(fs, filepath.Join(configDir, "credentials.enc"), passphrase))

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, first one preferred
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return errors.New("account name is required")
	}
	if account.Token == "" {
		return errors.New("token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the environment token if set, then the account
// named DefaultAccount, then the most recently modified one
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	if account, err := m.Retrieve(DefaultAccount); err == nil {
		return account, nil
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		sort.SliceStable(accounts, func(i, j int) bool {
			return accounts[i].LastModified.After(accounts[j].LastModified)
		})
		return accounts[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns all stored accounts, sorted by name
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			// the most recently modified copy wins
			if existing, ok := byName[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// UpdateDeviceID records a freshly issued device id on a stored account
func (m *Manager) UpdateDeviceID(name, deviceID string, at time.Time) error {
	account, err := m.Retrieve(name)
	if err != nil {
		return err
	}
	account.DeviceID = deviceID
	account.DeviceIDTimestamp = at.UnixMilli()
	return m.Store(account)
}

// Resolver fills the account section of cfg from stored credentials when
// no token was configured. name selects an account; empty means the default.
// The name of the account used is written to used, which may be nil.
func (m *Manager) Resolver(name string, used *string) config.Resolver {
	return func(cfg *config.Config) error {
		if cfg.Account.Token != "" && name == "" {
			return nil
		}

		var account *Account
		var err error
		if name != "" {
			account, err = m.Retrieve(name)
		} else {
			account, err = m.RetrieveDefault()
		}
		if err != nil {
			// validation reports the missing token
			if name == "" {
				return nil
			}
			return err
		}

		cfg.Account.Token = account.Token
		if account.UserAgent != "" {
			cfg.Account.UserAgent = account.UserAgent
		}
		if cfg.Account.DeviceID == "" && account.DeviceID != "" {
			cfg.Account.DeviceID = account.DeviceID
			cfg.Account.DeviceIDTimestamp = account.DeviceIDTimestamp
		}
		if used != nil {
			*used = account.Name
		}
		return nil
	}
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "fanslydl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "fanslydl")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "fanslydl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "fanslydl")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeAccount returns a copy of the account with the token masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	sanitized := *account
	sanitized.Token = MaskToken(account.Token)
	return &sanitized
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
