package secrets

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
	"runtime"
	"strings"
)

// Credential names used by moneysync.
const (
	SyncPassword = "sync_password"
	GitHubToken  = "github_token"
	S3SecretKey  = "s3_secret_key"
)

// ErrNotFound is returned when a credential has not been stored.
var ErrNotFound = errors.New("credential not found")

// lightweight per-user credential file (0600) with AES-GCM obfuscation.
// Not a replacement for OS keychains but keeps sync secrets out of config.toml.

const fileName = "credentials.json"

type credentialFile struct {
	Values map[string]string `json:"values"` // name -> base64(ciphertext)
}

// CredentialStore persists named secrets in a single file.
type CredentialStore struct {
	path string
}

// NewCredentialStore stores credentials under dir.
func NewCredentialStore(dir string) (*CredentialStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &CredentialStore{path: filepath.Join(dir, fileName)}, nil
}

// DefaultCredentialStore uses the per-user config directory.
func DefaultCredentialStore() (*CredentialStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewCredentialStore(filepath.Join(dir, "moneysync"))
}

func (s *CredentialStore) Store(name, value string) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("credential name required")
	}
	cf, err := load(s.path)
	if err != nil {
		return err
	}
	if cf.Values == nil {
		cf.Values = map[string]string{}
	}
	ct, err := seal([]byte(value))
	if err != nil {
		return err
	}
	cf.Values[name] = base64.StdEncoding.EncodeToString(ct)
	return save(s.path, cf)
}

func (s *CredentialStore) Fetch(name string) (string, error) {
	if name = norm(name); name == "" {
		return "", fmt.Errorf("credential name required")
	}
	cf, err := load(s.path)
	if err != nil {
		return "", err
	}
	enc, ok := cf.Values[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	pt, err := open(raw)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (s *CredentialStore) Delete(name string) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("credential name required")
	}
	cf, err := load(s.path)
	if err != nil {
		return err
	}
	delete(cf.Values, name)
	return save(s.path, cf)
}

// Lookup returns the env value when set, then the stored credential, then "".
func (s *CredentialStore) Lookup(name, env string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	if s == nil {
		return ""
	}
	v, err := s.Fetch(name)
	if err != nil {
		return ""
	}
	return v
}

func load(path string) (credentialFile, error) {
	var cf credentialFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return credentialFile{}, nil
		}
		return cf, err
	}
	if err := json.Unmarshal(data, &cf); err != nil {
		return cf, err
	}
	return cf, nil
}

func save(path string, cf credentialFile) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func machineKey() []byte {
	host, _ := os.Hostname()
	base := fmt.Sprintf("moneysync-%s-%s-%s", runtime.GOOS, os.Getenv("USER"), host)
	hash := sha256.Sum256([]byte(base))
	return hash[:]
}

func seal(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(machineKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(machineKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
