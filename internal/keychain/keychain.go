// Package keychain stores vault keys in the OS credential store (macOS
// Keychain, Secret Service on Linux, Windows Credential Manager).
package keychain

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/systmms/apivault/internal/secure"
	"github.com/zalando/go-keyring"
)

// DefaultService is the service name entries are filed under
const DefaultService = "API Vault"

// encryptionKeyAccount holds the local session encryption key
const encryptionKeyAccount = "local-encryption-key"

// ErrNotFound is returned when no entry exists for an account
var ErrNotFound = errors.New("keychain item not found")

// Error wraps OS credential store errors with context
type Error struct {
	Op      string // "save", "retrieve", "delete"
	Service string
	Account string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("keychain %s error for %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store saves secrets per account under one service name
type Store struct {
	service string
}

// Option configures a Store
type Option func(*Store)

// WithService overrides DefaultService
func WithService(service string) Option {
	return func(s *Store) {
		s.service = service
	}
}

// New creates a Store
func New(opts ...Option) *Store {
	s := &Store{service: DefaultService}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes secret for account, replacing any existing entry
func (s *Store) Save(account, secret string) error {
	if err := keyring.Set(s.service, account, secret); err != nil {
		return &Error{Op: "save", Service: s.service, Account: account, Err: err}
	}
	return nil
}

// Retrieve reads the secret for account. A missing entry returns ErrNotFound.
func (s *Store) Retrieve(account string) (string, error) {
	secret, err := keyring.Get(s.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", &Error{Op: "retrieve", Service: s.service, Account: account, Err: err}
	}
	return secret, nil
}

// Delete removes the entry for account. Deleting a missing entry succeeds.
func (s *Store) Delete(account string) error {
	if err := keyring.Delete(s.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &Error{Op: "delete", Service: s.service, Account: account, Err: err}
	}
	return nil
}

// EncryptionKey returns the local session encryption key, creating and
// saving one on first use
func (s *Store) EncryptionKey() ([]byte, error) {
	encoded, err := s.Retrieve(encryptionKeyAccount)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr == nil && len(key) == secure.KeySize {
			return key, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key, err := secure.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := s.Save(encryptionKeyAccount, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// NewEncryptor builds a secure.Encryptor keyed from the store. When the OS
// credential store is unusable the Encryptor passes values through.
func (s *Store) NewEncryptor() (*secure.Encryptor, error) {
	key, err := s.EncryptionKey()
	if err != nil {
		enc, _ := secure.NewEncryptor(nil)
		return enc, err
	}
	return secure.NewEncryptor(key)
}
