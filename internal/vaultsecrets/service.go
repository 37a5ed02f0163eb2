// Package vaultsecrets fetches cloud secrets through a shared cache.
//
// Service.GetSecret is cache-aside: it derives the cache key from the
// provider, returns a cached success when one exists and otherwise calls the
// provider, caching successful results for the configured number of
// minutes. Failures are never cached.
package vaultsecrets

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/systmms/apivault/internal/cloud"
	"github.com/systmms/apivault/internal/cloud/aws"
	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/metrics"
	"github.com/systmms/apivault/internal/secretcache"
	"github.com/systmms/apivault/internal/settings"
)

// SettingsSource supplies the current settings on every call
type SettingsSource interface {
	Current() settings.Settings
}

// Service is the secret retrieval orchestrator
type Service struct {
	registry *cloud.Registry
	cache    *secretcache.Cache[cloud.Secret]
	settings SettingsSource
	logger   *logging.Logger
	metrics  *metrics.Recorder
	group    *singleflight.Group
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithRegistry sets the provider registry (default: DefaultRegistry)
func WithRegistry(reg *cloud.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithCache injects the secret cache
func WithCache(cache *secretcache.Cache[cloud.Secret]) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithSettings sets where the cache duration is read from
func WithSettings(src SettingsSource) Option {
	return func(s *Service) {
		s.settings = src
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithSingleFlight coalesces concurrent cache misses for the same key into
// one provider call
func WithSingleFlight() Option {
	return func(s *Service) {
		s.group = &singleflight.Group{}
	}
}

// DefaultRegistry returns a registry with every built-in provider
func DefaultRegistry(awsOpts ...aws.Option) *cloud.Registry {
	reg := cloud.NewRegistry()
	aws.Register(reg, awsOpts...)
	return reg
}

// New creates a Service
func New(opts ...Option) (*Service, error) {
	s := &Service{
		settings: settings.Fixed(settings.Defaults()),
		logger:   logging.Discard(),
		metrics:  metrics.NewRecorder(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = DefaultRegistry(aws.WithLogger(s.logger.With("aws")))
	}
	if s.cache == nil {
		recorder := s.metrics
		cache, err := secretcache.New[cloud.Secret](
			secretcache.WithEvictionHook(func(key string, reason secretcache.EvictionReason) {
				recorder.CacheEviction(string(reason))
			}),
		)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// GetSecret returns the secret from cache or from the provider. The error
// is non-nil only for an unregistered provider or a mismatched credential.
func (s *Service) GetSecret(ctx context.Context, provider cloud.ProviderName, cred cloud.Credential, secretName string, cfg *cloud.SecretConfig) (cloud.ServiceResult[cloud.Secret], error) {
	p, err := s.registry.New(provider, cred)
	if err != nil {
		return cloud.ServiceResult[cloud.Secret]{}, err
	}

	key := p.UniqueCacheKey(secretName, cfg)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		s.logger.Debug("Secret cache hit for %s (%s)", secretName, key)
		return cloud.Ok(cached.Clone()), nil
	}
	s.metrics.CacheMiss()

	fetch := func() cloud.ServiceResult[cloud.Secret] {
		start := s.now()
		result := p.GetSecret(ctx, secretName, cfg)
		s.metrics.ProviderRequest(string(provider), "get_secret", result.Success, s.now().Sub(start).Seconds())

		if !result.Success || result.Result == nil {
			s.logFailure(provider, "get secret", cred, result.Error)
			return result
		}

		ttl := secretcache.ToDuration(s.settings.Current().VaultSecretCacheDuration, secretcache.Minutes)
		if ttl > 0 {
			s.cache.Set(key, result.Result.Clone(), ttl)
			s.logger.Debug("Cached %s for %s", secretName, ttl)
		}
		return result
	}

	if s.group == nil {
		return fetch(), nil
	}

	v, _, shared := s.group.Do(key, func() (interface{}, error) {
		return fetch(), nil
	})
	result := v.(cloud.ServiceResult[cloud.Secret])
	if shared && result.Result != nil {
		clone := result.Result.Clone()
		result.Result = &clone
	}
	return result, nil
}

// Authorize checks a credential with its provider
func (s *Service) Authorize(ctx context.Context, provider cloud.ProviderName, cred cloud.Credential) (cloud.ServiceResult[cloud.Identity], error) {
	p, err := s.registry.New(provider, cred)
	if err != nil {
		return cloud.ServiceResult[cloud.Identity]{}, err
	}

	start := s.now()
	result := p.Authorize(ctx)
	s.metrics.ProviderRequest(string(provider), "authorize", result.Success, s.now().Sub(start).Seconds())
	if !result.Success {
		s.logFailure(provider, "authorize", cred, result.Error)
	}
	return result, nil
}

// logFailure logs a normalized provider failure with the credential's
// secret material scrubbed from the provider message
func (s *Service) logFailure(provider cloud.ProviderName, op string, cred cloud.Credential, e *cloud.ServiceError) {
	if e == nil || !s.logger.DebugEnabled() {
		return
	}
	s.logger.Debug("%s %s failed: %s: %s", provider, op, e.ErrorCode,
		logging.Redact(e.ErrorMessage, credentialSecrets(cred)))
}

func credentialSecrets(cred cloud.Credential) []string {
	switch c := cred.(type) {
	case cloud.AWSTemporaryCredential:
		return []string{c.AccessKeyID, c.SecretAccessKey, c.SessionToken}
	case *cloud.AWSTemporaryCredential:
		if c != nil {
			return []string{c.AccessKeyID, c.SecretAccessKey, c.SessionToken}
		}
	}
	return nil
}

// ClearCache drops every cached secret
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// SetCacheMaxAge changes the cache's default TTL. An empty unit means
// minutes; invalid values are ignored.
func (s *Service) SetCacheMaxAge(amount float64, unit secretcache.Unit) {
	parsed, ok := secretcache.ParseUnit(string(unit))
	if !ok {
		s.logger.Debug("Ignoring cache max age with unknown unit %q", unit)
		return
	}
	s.cache.SetDefaultTTL(amount, parsed)
}

// CacheLen returns the number of live cache entries
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

// Providers lists the registered provider names
func (s *Service) Providers() []cloud.ProviderName {
	return s.registry.Names()
}
