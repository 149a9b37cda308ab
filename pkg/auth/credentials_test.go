package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func clearLoginEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"POSCRAPER_USERNAME", "POSCRAPER_PASSWORD", "CPS_USERNAME", "CPS_PASSWORD", "POSCRAPER_ORIGIN"} {
		t.Setenv(key, "")
	}
}

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username: "laurentius",
		Password: "hunter22-secret",
		Origin:   "https://maa-m.onlinepo.com",
	}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("laurentius")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}
	if retrieved.Origin != account.Origin {
		t.Errorf("Origin mismatch: got %s, want %s", retrieved.Origin, account.Origin)
	}

	if err := manager.Delete("laurentius"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("laurentius"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after delete, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Account{Password: "x"}); err == nil {
		t.Error("Expected error for missing username")
	}
	if err := manager.Store(&Account{Username: "x"}); err == nil {
		t.Error("Expected error for missing password")
	}
}

func TestManagerStoreFallsThrough(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("disk full")
	working := NewMockStore()

	manager := NewManagerWithStores(broken, working)
	if err := manager.Store(&Account{Username: "u", Password: "p"}); err != nil {
		t.Fatalf("Expected fallback store to accept account: %v", err)
	}
	if !working.Exists("u") {
		t.Error("Account should land in the second store")
	}
}

func TestManagerResolve(t *testing.T) {
	clearLoginEnv(t)

	store := NewMockStore()
	_ = store.Store(&Account{Username: "old", Password: "p", LastModified: time.Now().Add(-time.Hour)})
	_ = store.Store(&Account{Username: "new", Password: "p", LastModified: time.Now()})
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	account, err := manager.Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if account.Username != "new" {
		t.Errorf("Expected most recent account, got %s", account.Username)
	}

	account, err = manager.Resolve("old")
	if err != nil || account.Username != "old" {
		t.Errorf("Expected explicit username to win, got %v, %v", account, err)
	}

	t.Setenv("POSCRAPER_USERNAME", "fromenv")
	t.Setenv("POSCRAPER_PASSWORD", "envpass")
	account, err = manager.Resolve("")
	if err != nil || account.Username != "fromenv" {
		t.Errorf("Expected environment account to win, got %v, %v", account, err)
	}
}

func TestManagerResolveNothingStored(t *testing.T) {
	clearLoginEnv(t)
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	if _, err := manager.Resolve(""); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "u", Password: "a-very-long-password"}
	sanitized := SanitizeAccount(account)

	if sanitized.Password == account.Password {
		t.Error("Password should be masked")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}
	if SanitizeAccount(&Account{Password: "short"}).Password != "********" {
		t.Error("Short passwords should be fully masked")
	}
	if SanitizeAccount(nil) != nil {
		t.Error("nil account should sanitize to nil")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if err := store.Store(&Account{Username: "vault_user", Password: "vault_password_plain"}); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Account{Username: "another", Password: "p2"}); err != nil {
		t.Fatalf("Failed to store second account: %v", err)
	}

	retrieved, err := store.Retrieve("vault_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Password != "vault_password_plain" {
		t.Errorf("Password mismatch after encryption round trip")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("vault_password_plain")) {
		t.Error("File contains plaintext password")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected vault mode 0600, got %v", info.Mode().Perm())
	}

	accounts, err := store.List()
	if err != nil || len(accounts) != 2 || accounts[0].Username != "another" {
		t.Errorf("Unexpected list result: %v, %v", accounts, err)
	}

	_ = store.Delete("another")
	_ = store.Delete("vault_user")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Vault file should be removed with its last account")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, _ := NewEncryptedFileStoreWithPassphrase(path, "right")
	if err := store.Store(&Account{Username: "u", Password: "p"}); err != nil {
		t.Fatal(err)
	}

	other, _ := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	if _, err := other.Retrieve("u"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected decryption error, got %v", err)
	}
}

func TestEncryptedFileStorePassphraseFromEnv(t *testing.T) {
	t.Setenv("POSCRAPER_PASSPHRASE", "env_passphrase")
	path := filepath.Join(t.TempDir(), "nested", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.passphrase != "env_passphrase" {
		t.Errorf("Expected passphrase from environment, got %q", store.passphrase)
	}
}

func TestEnvironmentStore(t *testing.T) {
	clearLoginEnv(t)
	store := NewEnvironmentStore()

	if _, err := store.Retrieve(""); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected not found without environment, got %v", err)
	}

	t.Setenv("CPS_USERNAME", "legacy")
	t.Setenv("CPS_PASSWORD", "legacy_pass")
	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve legacy variables: %v", err)
	}
	if account.Username != "legacy" || account.Password != "legacy_pass" {
		t.Errorf("Unexpected legacy account: %+v", account)
	}

	t.Setenv("POSCRAPER_USERNAME", "current")
	t.Setenv("POSCRAPER_PASSWORD", "current_pass")
	account, _ = store.Retrieve("")
	if account.Username != "current" {
		t.Errorf("POSCRAPER_* should take precedence, got %s", account.Username)
	}

	if store.Exists("someone-else") {
		t.Error("Exists should not match another username")
	}
	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Mock keyring should be available: %v", err)
	}

	if err := store.Store(&Account{Username: "kr", Password: "kr_pass"}); err != nil {
		t.Fatalf("Failed to store in keyring: %v", err)
	}
	if !store.Exists("kr") {
		t.Error("Account should exist in keyring")
	}

	account, err := store.Retrieve("kr")
	if err != nil || account.Password != "kr_pass" {
		t.Errorf("Unexpected keyring result: %v, %v", account, err)
	}

	if err := store.Delete("kr"); err != nil {
		t.Errorf("Failed to delete from keyring: %v", err)
	}
	if _, err := store.Retrieve("kr"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	store.ListError = errors.New("injected error")

	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}
