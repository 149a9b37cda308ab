package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account is a login for the purchase-order site
type Account struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	Origin       string    `json:"origin,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving site logins
type CredentialStore interface {
	// Store saves the login for account.Username
	Store(account *Account) error

	// Retrieve gets the login for a specific username
	Retrieve(username string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes the login for a specific username
	Delete(username string) error

	// Exists checks if a login exists for a username
	Exists(username string) bool
}

// Manager looks up logins across several stores in priority order
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager backed by the system keyring when available,
// then an encrypted file, then the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, first wins
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return errors.New("username is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
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

// Retrieve gets the account from the first store that has it
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// Resolve picks the login for a run. An explicit username is looked up in
// every store. Without one, environment credentials win, then the most
// recently stored account.
func (m *Manager) Resolve(username string) (*Account, error) {
	if username != "" {
		return m.Retrieve(username)
	}

	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if account, err := envStore.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}

	latest := accounts[0]
	for _, a := range accounts[1:] {
		if a.LastModified.After(latest.LastModified) {
			latest = a
		}
	}
	return latest, nil
}

// List returns the newest copy of every account across all stores
func (m *Manager) List() ([]*Account, error) {
	byUser := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byUser[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				byUser[account.Username] = account
			}
		}
	}

	result := make([]*Account, 0, len(byUser))
	for _, account := range byUser {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes the account from every store that holds it
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "poscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "poscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "poscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "poscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeAccount returns a copy of account with the password masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	masked := *account
	masked.Password = maskString(account.Password)
	return &masked
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
