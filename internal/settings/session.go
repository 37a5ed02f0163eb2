package settings

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	apierrors "github.com/systmms/apivault/internal/errors"
)

// Session is the locally persisted vault state of the signed-in account
type Session struct {
	AccountID string `yaml:"accountId"`
	// VaultSalt is hex; empty until a vault key is registered
	VaultSalt string `yaml:"vaultSalt,omitempty"`
	// VaultKey is the encrypted, base64 session copy of the vault key
	VaultKey string `yaml:"vaultKey,omitempty"`
}

// SessionFile persists a Session as YAML with owner-only permissions
type SessionFile struct {
	path string
	mu   sync.Mutex
}

// NewSessionFile creates a SessionFile at path
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Load reads the session. A missing file yields an empty Session.
func (f *SessionFile) Load(ctx context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Session{}, apierrors.ConfigError{
			Field:      "session",
			Message:    "session file is corrupted",
			Suggestion: fmt.Sprintf("Delete %s and sign in again", f.path),
		}
	}
	return s, nil
}

// Save replaces the session file
func (f *SessionFile) Save(ctx context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return writeFileAtomic(f.path, data, 0o600)
}
