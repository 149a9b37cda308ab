package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 32
	keySize          = 32
	pbkdf2Iterations = 100000
	vaultVersion     = 1
)

// EncryptedFileStore keeps logins in a single AES-GCM encrypted JSON file.
// The key is derived from a passphrase with PBKDF2-SHA256.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

type vaultFile struct {
	Version    int       `json:"version"`
	Salt       string    `json:"salt"`
	Ciphertext string    `json:"ciphertext"`
	Modified   time.Time `json:"modified"`
}

// NewEncryptedFileStore opens a vault at path. The passphrase comes from
// POSCRAPER_PASSPHRASE or a generated file next to the config.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreWithPassphrase(path, passphrase)
}

// NewEncryptedFileStoreWithPassphrase opens a vault at path with an explicit passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load vault: %w", err)
	}
	if accounts == nil {
		accounts = make(map[string]Account)
	}

	accounts[account.Username] = *account
	return e.write(accounts, salt)
}

func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}

	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns accounts sorted by username
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}

	result := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		acc := account
		result = append(result, &acc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// Delete removes the account. The vault file is removed with its last account.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load vault: %w", err)
	}
	if _, ok := accounts[username]; !ok {
		return ErrCredentialsNotFound
	}

	delete(accounts, username)
	if len(accounts) == 0 {
		return os.Remove(e.path)
	}
	return e.write(accounts, salt)
}

func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

func (e *EncryptedFileStore) read() (map[string]Account, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if vf.Version != vaultVersion {
		return nil, nil, fmt.Errorf("unsupported vault version %d", vf.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(vf.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(vf.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plain, err := open(sealed, e.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt vault: %w", err)
	}

	var accounts map[string]Account
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, salt, nil
}

// write seals accounts and replaces the vault atomically. A nil salt is generated.
func (e *EncryptedFileStore) write(accounts map[string]Account, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	sealed, err := seal(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Modified:   time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

func loadPassphrase() (string, error) {
	if pass := os.Getenv("POSCRAPER_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	passFile := filepath.Join(configDir, ".passphrase")

	if content, err := os.ReadFile(passFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(buf)

	if err := os.WriteFile(passFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
