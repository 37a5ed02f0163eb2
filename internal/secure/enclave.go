package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed SecureBuffer is opened
var ErrDestroyed = errors.New("secure buffer destroyed")

// ErrEmpty is returned when a SecureBuffer is created from no data
var ErrEmpty = errors.New("secure buffer needs at least one byte")

// SecureBuffer holds sensitive bytes in a memguard enclave
type SecureBuffer struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewSecureBuffer seals data into an enclave. memguard wipes data after
// copying it, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	return &SecureBuffer{
		enclave: memguard.NewEnclave(data),
	}, nil
}

// NewSecureString seals a string
func NewSecureString(s string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the enclave into a locked buffer. The caller must Destroy
// the returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	return s.enclave.Open()
}

// Reveal returns the plaintext as a string. The string lives in ordinary Go
// memory, so keep its lifetime short.
func (s *SecureBuffer) Reveal() (string, error) {
	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	// copy out before Destroy wipes the locked pages
	return string(locked.Bytes()), nil
}

// Size returns the plaintext length, or 0 once destroyed
func (s *SecureBuffer) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return 0
	}
	return s.enclave.Size()
}

// Destroy drops the enclave. It is idempotent.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}
