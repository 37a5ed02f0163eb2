package secure

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of an Encryptor key in bytes
const KeySize = chacha20poly1305.KeySize

// Encryptor seals short strings for local storage. Output is the standard
// base64 encoding of nonce || ciphertext.
type Encryptor struct {
	key *SecureBuffer
}

// NewEncryptor creates an Encryptor. A nil or empty key yields an Encryptor
// that reports encryption unavailable and passes values through.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) == 0 {
		return &Encryptor{}, nil
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	buf, err := NewSecureBuffer(key)
	if err != nil {
		return nil, err
	}
	return &Encryptor{key: buf}, nil
}

// GenerateKey returns a fresh random key for NewEncryptor
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// EncryptionAvailable reports whether values are actually encrypted
func (e *Encryptor) EncryptionAvailable() bool {
	return e != nil && e.key != nil
}

// Encrypt seals plaintext. Without a key it returns plaintext unchanged.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if !e.EncryptionAvailable() {
		return plaintext, nil
	}

	locked, err := e.key.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open encryption key: %w", err)
	}
	defer locked.Destroy()

	aead, err := chacha20poly1305.NewX(locked.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Without a key it returns the
// input unchanged.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if !e.EncryptionAvailable() {
		return encoded, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("encrypted value is not base64: %w", err)
	}

	locked, err := e.key.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open encryption key: %w", err)
	}
	defer locked.Destroy()

	aead, err := chacha20poly1305.NewX(locked.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("encrypted value is too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}

// Close destroys the key enclave
func (e *Encryptor) Close() {
	if e != nil && e.key != nil {
		e.key.Destroy()
	}
}
