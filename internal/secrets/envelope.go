// Package secrets holds the password envelope used for synced and cached
// snapshots, plus a small on-disk credential store.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	nonceLen   = 12
	keyLen     = 32
	iterations = 100_000
)

// ErrDecryption is returned when ciphertext cannot be opened with the given password.
var ErrDecryption = errors.New("decryption failed")

// Encrypt seals data with a key derived from password.
// Output layout is salt || nonce || ciphertext.
func Encrypt(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("encrypt: password is empty")
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltLen+nonceLen+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data produced by Encrypt. Any failure, including a wrong
// password or truncated input, is reported as ErrDecryption.
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < saltLen+nonceLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	salt := data[:saltLen]
	nonce := data[saltLen : saltLen+nonceLen]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plain, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
