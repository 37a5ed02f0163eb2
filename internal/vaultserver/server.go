// Package vaultserver is a development implementation of the apivault vault
// backend. It stores (salt, verifier) proofs and answers the SRP-6a
// authentication endpoints, so the vault key flows can run end to end
// without the hosted service.
package vaultserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/metrics"
	"github.com/systmms/apivault/internal/secretcache"
	"github.com/systmms/apivault/internal/vaultkey"
)

const (
	// DefaultSessionStarterTTL bounds the gap between verify-a and verify-m1
	DefaultSessionStarterTTL = 5 * time.Minute
	maxPendingSessions       = 10000
	maxBodyBytes             = 64 << 10
)

type pendingAuth struct {
	accountID string
	srp       *vaultkey.Server
}

// Server handles the vault backend endpoints
type Server struct {
	store   Store
	pending *secretcache.Cache[*pendingAuth]
	logger  *logging.Logger
	metrics *metrics.Recorder
	random  io.Reader
	newID   func() string

	starterTTL time.Duration
	now        func() time.Time
	mounts     []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = recorder
	}
}

// WithRandom replaces crypto/rand, for tests
func WithRandom(r io.Reader) Option {
	return func(s *Server) {
		s.random = r
	}
}

// WithMount serves handler under pattern next to the vault endpoints
func WithMount(pattern string, handler http.Handler) Option {
	return func(s *Server) {
		s.mounts = append(s.mounts, mount{pattern: pattern, handler: handler})
	}
}

// WithSessionStarterTTL sets how long a verify-a challenge stays usable
func WithSessionStarterTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.starterTTL = ttl
	}
}

// WithClock replaces time.Now for session starter expiry, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a Server backed by store
func New(store Store, opts ...Option) (*Server, error) {
	s := &Server{
		store:   store,
		logger:  logging.Discard(),
		metrics: metrics.NewRecorder(),
		random:  rand.Reader,
		newID:   uuid.NewString,

		starterTTL: DefaultSessionStarterTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	pending, err := secretcache.New[*pendingAuth](
		secretcache.WithMaxSize(maxPendingSessions),
		secretcache.WithDefaultTTL(s.starterTTL),
		secretcache.WithClock(s.now),
	)
	if err != nil {
		return nil, err
	}
	s.pending = pending
	return s, nil
}

// Router returns the HTTP handler with every vault endpoint plus health
// and metrics
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	for _, m := range s.mounts {
		r.Mount(m.pattern, m.handler)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireAccount)
		r.Post(vaultkey.PathCreate, s.handleCreate)
		r.Post(vaultkey.PathReset, s.handleReset)
		r.Post(vaultkey.PathVerifyA, s.handleVerifyA)
		r.Post(vaultkey.PathVerifyM1, s.handleVerifyM1)
	})

	return r
}

type accountKey struct{}

func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get(vaultkey.AccountHeader)
		if accountID == "" {
			writeError(w, http.StatusBadRequest, "missing "+vaultkey.AccountHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), accountKey{}, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFrom(r *http.Request) string {
	id, _ := r.Context().Value(accountKey{}).(string)
	return id
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.handleProof(w, r, "create", s.store.Create)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.handleProof(w, r, "reset", s.store.Replace)
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request, route string, save func(context.Context, Record) error) {
	var in vaultkey.Proof
	if !decodeBody(w, r, &in) {
		s.metrics.BackendRequest(route, false)
		return
	}
	if !isHex(in.Salt) || !isHex(in.Verifier) {
		s.metrics.BackendRequest(route, false)
		writeError(w, http.StatusBadRequest, "salt and verifier must be non-empty hex")
		return
	}

	accountID := accountFrom(r)
	err := save(r.Context(), Record{AccountID: accountID, Salt: in.Salt, Verifier: in.Verifier})
	s.metrics.BackendRequest(route, err == nil)
	switch {
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "a vault key already exists for this account")
		return
	case err != nil:
		s.logger.Error("Vault %s for %s failed: %v", route, accountID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("Vault %s for %s", route, accountID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleVerifyA(w http.ResponseWriter, r *http.Request) {
	var in vaultkey.VerifyARequest
	if !decodeBody(w, r, &in) {
		s.metrics.BackendRequest("verify-a", false)
		return
	}

	ch, status, msg := s.verifyA(r.Context(), accountFrom(r), in.SRPA)
	s.metrics.BackendRequest("verify-a", status == http.StatusOK)
	if status != http.StatusOK {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) verifyA(ctx context.Context, accountID, srpA string) (vaultkey.Challenge, int, string) {
	rec, err := s.store.Get(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return vaultkey.Challenge{}, http.StatusNotFound, "no vault key registered for this account"
	}
	if err != nil {
		s.logger.Error("Vault lookup for %s failed: %v", accountID, err)
		return vaultkey.Challenge{}, http.StatusInternalServerError, "internal error"
	}

	a, err := hex.DecodeString(srpA)
	if err != nil || len(a) == 0 {
		return vaultkey.Challenge{}, http.StatusBadRequest, "srpA must be hex"
	}
	verifier, err := hex.DecodeString(rec.Verifier)
	if err != nil {
		return vaultkey.Challenge{}, http.StatusInternalServerError, "stored verifier is corrupt"
	}

	secret := make([]byte, 32)
	if _, err := io.ReadFull(s.random, secret); err != nil {
		return vaultkey.Challenge{}, http.StatusInternalServerError, "internal error"
	}

	srv := vaultkey.NewServer(vaultkey.Group2048, verifier, secret)
	if err := srv.SetA(a); err != nil {
		return vaultkey.Challenge{}, http.StatusBadRequest, err.Error()
	}

	id := s.newID()
	s.pending.Set(id, &pendingAuth{accountID: accountID, srp: srv})

	return vaultkey.Challenge{
		SessionStarterID: id,
		SRPB:             hex.EncodeToString(srv.PublicB()),
	}, http.StatusOK, ""
}

func (s *Server) handleVerifyM1(w http.ResponseWriter, r *http.Request) {
	var in vaultkey.VerifyM1Request
	if !decodeBody(w, r, &in) {
		s.metrics.BackendRequest("verify-m1", false)
		return
	}

	accountID := accountFrom(r)
	pending, ok := s.pending.Get(in.SessionStarterID)
	if !ok || pending.accountID != accountID {
		s.metrics.BackendRequest("verify-m1", false)
		writeError(w, http.StatusBadRequest, "unknown or expired session starter")
		return
	}
	// Single use
	s.pending.Delete(in.SessionStarterID)

	m1, err := hex.DecodeString(in.SRPM1)
	if err != nil {
		s.metrics.BackendRequest("verify-m1", false)
		writeError(w, http.StatusBadRequest, "srpM1 must be hex")
		return
	}

	m2, ok := pending.srp.CheckM1(m1)
	s.metrics.BackendRequest("verify-m1", ok)
	if !ok {
		s.logger.Warn("Vault key proof rejected for %s", accountID)
		writeError(w, http.StatusUnauthorized, vaultkey.ErrVaultKeyInvalid.Error())
		return
	}

	writeJSON(w, http.StatusOK, vaultkey.VerifyM1Response{SRPM2: hex.EncodeToString(m2)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, vaultkey.ErrorResponse{Error: msg})
}

// Config holds listener settings for Run
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default listener settings
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8787",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("Vault backend listening on http://%s", cfg.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("vault backend failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
