package vaultkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/metrics"
	"github.com/systmms/apivault/internal/secure"
	"github.com/systmms/apivault/internal/settings"
)

// State is the local vault key state
type State int

const (
	// StateNoVaultKey means no vault key was ever registered
	StateNoVaultKey State = iota
	// StateRegistered means a key was just created or reset on this machine
	StateRegistered
	// StateLockedAfterReauth means the salt is known but the key is not
	StateLockedAfterReauth
	// StateUnlocked means the key is validated and available
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateNoVaultKey:
		return "no-vault-key"
	case StateRegistered:
		return "registered"
	case StateLockedAfterReauth:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the vault half of the apivault backend API
type Backend interface {
	// CreateVault stores a first proof; it must be idempotent
	CreateVault(ctx context.Context, accountID string, proof Proof) error
	// ResetVault replaces the stored proof atomically
	ResetVault(ctx context.Context, accountID string, proof Proof) error
	// VerifyA starts an authentication
	VerifyA(ctx context.Context, accountID, srpA string) (Challenge, error)
	// VerifyM1 returns srpM2, or an error wrapping ErrVaultKeyInvalid when
	// the proof is rejected
	VerifyM1(ctx context.Context, accountID, sessionStarterID, srpM1 string) (string, error)
}

// SessionStore persists the local session
type SessionStore interface {
	Load(ctx context.Context) (settings.Session, error)
	Save(ctx context.Context, s settings.Session) error
}

// Encryptor protects the session copy of the vault key
type Encryptor interface {
	EncryptionAvailable() bool
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CredentialStore is the OS credential store used to mirror the vault key
type CredentialStore interface {
	Save(account, secret string) error
	Retrieve(account string) (string, error)
	Delete(account string) error
}

// SettingsSource supplies the current settings
type SettingsSource interface {
	Current() settings.Settings
}

// Engine runs the vault key flows for the session's account. Its methods
// are safe for concurrent use; each flow runs to completion before the
// next starts.
type Engine struct {
	backend   Backend
	sessions  SessionStore
	encryptor Encryptor
	creds     CredentialStore
	settings  SettingsSource
	logger    *logging.Logger
	metrics   *metrics.Recorder
	random    io.Reader

	mu    sync.Mutex
	state State
	key   *secure.SecureBuffer
}

// Option configures an Engine
type Option func(*Engine)

// WithEncryptor sets the session key encryptor (default: pass-through)
func WithEncryptor(enc Encryptor) Option {
	return func(e *Engine) {
		e.encryptor = enc
	}
}

// WithCredentialStore enables the OS credential store mirror
func WithCredentialStore(creds CredentialStore) Option {
	return func(e *Engine) {
		e.creds = creds
	}
}

// WithSettings sets the settings source
func WithSettings(src SettingsSource) Option {
	return func(e *Engine) {
		e.settings = src
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = recorder
	}
}

// WithRandom replaces crypto/rand, for tests
func WithRandom(r io.Reader) Option {
	return func(e *Engine) {
		e.random = r
	}
}

// NewEngine creates an Engine. Call Load to pick up an existing session.
func NewEngine(backend Backend, sessions SessionStore, opts ...Option) *Engine {
	passThrough, _ := secure.NewEncryptor(nil)
	e := &Engine{
		backend:   backend,
		sessions:  sessions,
		encryptor: passThrough,
		settings:  settings.Fixed(settings.Defaults()),
		logger:    logging.Discard(),
		metrics:   metrics.NewRecorder(),
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Load derives the state from the persisted session
func (e *Engine) Load(ctx context.Context) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.sessions.Load(ctx)
	if err != nil {
		return e.state, err
	}

	switch {
	case sess.VaultSalt == "":
		e.state = StateNoVaultKey
	case sess.VaultKey == "" && e.key == nil:
		e.state = StateLockedAfterReauth
	case e.state != StateRegistered:
		e.state = StateUnlocked
	}
	return e.state, nil
}

// Register creates the account's first vault key and returns it
func (e *Engine) Register(ctx context.Context) (string, error) {
	return e.enroll(ctx, "register", e.backend.CreateVault)
}

// Reset replaces the account's vault key. Data encrypted under the old key
// can no longer be decrypted.
func (e *Engine) Reset(ctx context.Context) (string, error) {
	return e.enroll(ctx, "reset", e.backend.ResetVault)
}

func (e *Engine) enroll(ctx context.Context, op string, submit func(context.Context, string, Proof) error) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vaultKey, err := e.doEnroll(ctx, submit)
	e.metrics.VaultKeyOperation(op, err == nil)
	if err != nil {
		e.logger.Debug("Vault key %s failed: %v", op, err)
		return "", err
	}
	return vaultKey, nil
}

func (e *Engine) doEnroll(ctx context.Context, submit func(context.Context, string, Proof) error) (string, error) {
	sess, err := e.loadAccountSession(ctx)
	if err != nil {
		return "", err
	}

	vaultKey, err := generateVaultKey(e.random)
	if err != nil {
		return "", err
	}
	salt, err := generateSalt(e.random)
	if err != nil {
		return "", err
	}
	verifier, err := ComputeVerifierHex(salt, sess.AccountID, vaultKey)
	if err != nil {
		return "", err
	}

	sealed, err := e.encryptor.Encrypt(vaultKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt vault key: %w", err)
	}

	// nothing after submit may fail locally except the session save
	if err := submit(ctx, sess.AccountID, Proof{Salt: salt, Verifier: verifier}); err != nil {
		return "", err
	}

	sess.VaultSalt = salt
	sess.VaultKey = sealed
	if err := e.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	e.mirrorToKeychain(sess.AccountID, vaultKey)
	e.hold(vaultKey)
	e.state = StateRegistered
	return vaultKey, nil
}

// Authenticate proves vaultKey against the backend using salt. A wrong key
// returns false with an error wrapping ErrVaultKeyInvalid; a transport
// problem returns false with a *RequestError. State changes only on success.
func (e *Engine) Authenticate(ctx context.Context, salt, vaultKey string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.authenticate(ctx, salt, vaultKey)
	e.metrics.VaultKeyOperation("authenticate", err == nil)
	if err != nil {
		e.logger.Debug("Vault key authentication failed: %v", err)
		return false, err
	}

	e.hold(vaultKey)
	e.state = StateUnlocked
	return true, nil
}

func (e *Engine) authenticate(ctx context.Context, saltHex, vaultKey string) error {
	sess, err := e.loadAccountSession(ctx)
	if err != nil {
		return err
	}

	salt, err := decodeSalt(saltHex)
	if err != nil {
		return err
	}
	password, err := decodeVaultKey(vaultKey)
	if err != nil {
		return err
	}
	secret, err := randomBytes(e.random, secretSize)
	if err != nil {
		return err
	}

	client := NewClient(Group2048, salt, []byte(sess.AccountID), password, secret)

	challenge, err := e.backend.VerifyA(ctx, sess.AccountID, hex.EncodeToString(client.PublicA()))
	if err != nil {
		return err
	}

	srpB, err := hex.DecodeString(challenge.SRPB)
	if err != nil {
		return &RequestError{Op: "verify-a", Message: "srpB is not hex", Err: err}
	}
	if err := client.SetB(srpB); err != nil {
		return &RequestError{Op: "verify-a", Message: "invalid srpB", Err: err}
	}

	m1, err := client.M1()
	if err != nil {
		return err
	}

	srpM2, err := e.backend.VerifyM1(ctx, sess.AccountID, challenge.SessionStarterID, hex.EncodeToString(m1))
	if err != nil {
		return err
	}

	m2, err := hex.DecodeString(srpM2)
	if err != nil || !client.VerifyM2(m2) {
		return ErrVaultKeyInvalid
	}
	return nil
}

// VaultKey returns the unlocked vault key. Without one in memory it decrypts
// the session copy; if decryption fails the stored value is returned as is.
// An empty string means no key is available.
func (e *Engine) VaultKey(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		return e.key.Reveal()
	}

	sess, err := e.sessions.Load(ctx)
	if err != nil {
		return "", err
	}
	return e.decryptSessionKey(sess.VaultKey), nil
}

func (e *Engine) decryptSessionKey(stored string) string {
	if stored == "" {
		return ""
	}
	plain, err := e.encryptor.Decrypt(stored)
	if err != nil {
		e.logger.Warn("Could not decrypt the stored vault key, using it as stored")
		return stored
	}
	return plain
}

// SaveVaultKey persists a validated vault key to the session and, when the
// settings ask for it, to the OS credential store
func (e *Engine) SaveVaultKey(ctx context.Context, vaultKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.loadAccountSession(ctx)
	if err != nil {
		return err
	}

	sealed, err := e.encryptor.Encrypt(vaultKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault key: %w", err)
	}
	sess.VaultKey = sealed
	if err := e.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	e.mirrorToKeychain(sess.AccountID, vaultKey)
	e.hold(vaultKey)
	if sess.VaultSalt != "" {
		e.state = StateUnlocked
	}
	return nil
}

// RecoverFromKeychain unlocks a locked session with the key mirrored in the
// OS credential store. The key is authenticated before it is trusted.
func (e *Engine) RecoverFromKeychain(ctx context.Context) (bool, error) {
	if e.creds == nil {
		return false, nil
	}

	sess, err := e.sessions.Load(ctx)
	if err != nil {
		return false, err
	}
	if sess.AccountID == "" || sess.VaultSalt == "" {
		return false, nil
	}

	vaultKey, err := e.creds.Retrieve(sess.AccountID)
	if err != nil || vaultKey == "" {
		e.logger.Debug("No vault key in the OS credential store: %v", err)
		return false, nil
	}

	ok, err := e.Authenticate(ctx, sess.VaultSalt, vaultKey)
	if !ok {
		return false, err
	}
	return true, e.SaveVaultKey(ctx, vaultKey)
}

// Lock forgets the vault key locally. The salt is kept so the key can be
// authenticated again.
func (e *Engine) Lock(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.sessions.Load(ctx)
	if err != nil {
		return err
	}
	sess.VaultKey = ""
	if err := e.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if e.key != nil {
		e.key.Destroy()
		e.key = nil
	}
	if sess.VaultSalt == "" {
		e.state = StateNoVaultKey
	} else {
		e.state = StateLockedAfterReauth
	}
	return nil
}

func (e *Engine) loadAccountSession(ctx context.Context) (settings.Session, error) {
	sess, err := e.sessions.Load(ctx)
	if err != nil {
		return settings.Session{}, err
	}
	if sess.AccountID == "" {
		return settings.Session{}, fmt.Errorf("%w: %w", apierrors.ErrInvalidArgument, ErrNoAccount)
	}
	return sess, nil
}

// mirrorToKeychain saves or clears the credential store copy. Failures are
// logged only; the session copy remains authoritative.
func (e *Engine) mirrorToKeychain(accountID, vaultKey string) {
	if e.creds == nil {
		return
	}

	if e.settings.Current().SaveVaultKeyToOSSecretManager {
		if err := e.creds.Save(accountID, vaultKey); err != nil {
			e.logger.Warn("Could not save the vault key to the OS credential store: %v", err)
		}
		return
	}

	if err := e.creds.Delete(accountID); err != nil {
		e.logger.Debug("Could not clear the OS credential store entry: %v", err)
	}
}

func (e *Engine) hold(vaultKey string) {
	if e.key != nil {
		e.key.Destroy()
		e.key = nil
	}
	buf, err := secure.NewSecureString(vaultKey)
	if err != nil {
		e.logger.Debug("Vault key not held in memory: %v", err)
		return
	}
	e.key = buf
}

// IsInvalidKey reports whether err means the vault key was wrong
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrVaultKeyInvalid)
}
