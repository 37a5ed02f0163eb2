// Package metrics exposes Prometheus metrics for the secret cache, cloud
// provider calls and vault key operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequestsTotal     *prometheus.CounterVec
	cacheEvictionsTotal    *prometheus.CounterVec
	providerRequestsTotal  *prometheus.CounterVec
	providerRequestSeconds *prometheus.HistogramVec
	vaultKeyOpsTotal       *prometheus.CounterVec
	backendRequestsTotal   *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Recorder records apivault metrics. The zero value is usable; calls are
// no-ops until InitMetrics has run.
type Recorder struct{}

// NewRecorder creates a new Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics registers all metrics with the default Prometheus registry.
// It is safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apivault_secret_cache_requests_total",
				Help: "Secret cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		)

		cacheEvictionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apivault_secret_cache_evictions_total",
				Help: "Entries dropped from the secret cache by reason",
			},
			[]string{"reason"},
		)

		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apivault_provider_requests_total",
				Help: "Cloud provider calls by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		)

		providerRequestSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apivault_provider_request_duration_seconds",
				Help:    "Latency of cloud provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"provider", "operation"},
		)

		vaultKeyOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apivault_vault_key_operations_total",
				Help: "Vault key register, reset and authenticate attempts by outcome",
			},
			[]string{"operation", "outcome"},
		)

		backendRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apivault_vault_backend_requests_total",
				Help: "Requests handled by the development vault backend by route and outcome",
			},
			[]string{"route", "outcome"},
		)

		metricsRegistered = true
	})
}

// CacheHit records a cache lookup that found a value
func (r *Recorder) CacheHit() {
	if !metricsRegistered || cacheRequestsTotal == nil {
		return
	}
	cacheRequestsTotal.WithLabelValues("hit").Inc()
}

// CacheMiss records a cache lookup that fell through to the provider
func (r *Recorder) CacheMiss() {
	if !metricsRegistered || cacheRequestsTotal == nil {
		return
	}
	cacheRequestsTotal.WithLabelValues("miss").Inc()
}

// CacheEviction records an entry dropped for the given reason
func (r *Recorder) CacheEviction(reason string) {
	if !metricsRegistered || cacheEvictionsTotal == nil {
		return
	}
	cacheEvictionsTotal.WithLabelValues(reason).Inc()
}

// ProviderRequest records one provider call
func (r *Recorder) ProviderRequest(provider, operation string, success bool, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if providerRequestsTotal != nil {
		providerRequestsTotal.WithLabelValues(provider, operation, outcome(success)).Inc()
	}
	if providerRequestSeconds != nil {
		providerRequestSeconds.WithLabelValues(provider, operation).Observe(durationSeconds)
	}
}

// VaultKeyOperation records a vault key protocol attempt
func (r *Recorder) VaultKeyOperation(operation string, success bool) {
	if !metricsRegistered || vaultKeyOpsTotal == nil {
		return
	}
	vaultKeyOpsTotal.WithLabelValues(operation, outcome(success)).Inc()
}

// BackendRequest records a request handled by the development vault backend
func (r *Recorder) BackendRequest(route string, success bool) {
	if !metricsRegistered || backendRequestsTotal == nil {
		return
	}
	backendRequestsTotal.WithLabelValues(route, outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// GetCacheRequestsTotal returns the cache request counter for testing.
func GetCacheRequestsTotal() *prometheus.CounterVec {
	return cacheRequestsTotal
}

// GetCacheEvictionsTotal returns the eviction counter for testing.
func GetCacheEvictionsTotal() *prometheus.CounterVec {
	return cacheEvictionsTotal
}

// GetProviderRequestsTotal returns the provider request counter for testing.
func GetProviderRequestsTotal() *prometheus.CounterVec {
	return providerRequestsTotal
}

// GetVaultKeyOperationsTotal returns the vault key counter for testing.
func GetVaultKeyOperationsTotal() *prometheus.CounterVec {
	return vaultKeyOpsTotal
}

// GetBackendRequestsTotal returns the backend request counter for testing.
func GetBackendRequestsTotal() *prometheus.CounterVec {
	return backendRequestsTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
