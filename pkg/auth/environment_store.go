package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single login from POSCRAPER_USERNAME and
// POSCRAPER_PASSWORD, falling back to the legacy CPS_USERNAME and
// CPS_PASSWORD names. It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment login. A non-empty username must match it.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	user, pass := envLogin()
	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != user {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     user,
		Password:     pass,
		Origin:       os.Getenv("POSCRAPER_ORIGIN"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

func envLogin() (string, string) {
	user := os.Getenv("POSCRAPER_USERNAME")
	pass := os.Getenv("POSCRAPER_PASSWORD")
	if user == "" && pass == "" {
		user = os.Getenv("CPS_USERNAME")
		pass = os.Getenv("CPS_PASSWORD")
	}
	return user, pass
}
