package commands

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/config"
	"github.com/systmms/apivault/internal/metrics"
	"github.com/systmms/apivault/internal/secretcache"
	"github.com/systmms/apivault/internal/settings"
	"github.com/systmms/apivault/internal/vaultsecrets"
	"github.com/systmms/apivault/internal/vaultserver"
)

// NewServeCommand creates the serve command
func NewServeCommand(cfg *config.Config) *cobra.Command {
	var (
		addr     string
		dbPath   string
		inMemory bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local development vault backend",
		Long: `Run a local vault backend for development.

Serves the vault key endpoints, the cloud secret bridge under
/cloud-service, /healthz and Prometheus /metrics. Proofs are kept in a
SQLite database unless --memory is given. Changes to the settings file are
picked up while running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			logger := cfg.Logger

			metrics.InitMetrics()
			recorder := metrics.NewRecorder()

			store, closeStore, err := openProofStore(dbPath, inMemory)
			if err != nil {
				return err
			}
			defer closeStore()

			svc, err := vaultsecrets.New(
				vaultsecrets.WithSettings(cfg.Store()),
				vaultsecrets.WithLogger(logger.With("secrets")),
				vaultsecrets.WithMetrics(recorder),
				vaultsecrets.WithSingleFlight(),
			)
			if err != nil {
				return err
			}

			srv, err := vaultserver.New(store,
				vaultserver.WithLogger(logger.With("vault")),
				vaultserver.WithMetrics(recorder),
				vaultserver.WithMount("/cloud-service", vaultsecrets.Handler(svc)),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg.Store().Subscribe(func(s settings.Settings) {
				svc.SetCacheMaxAge(s.VaultSecretCacheDuration, secretcache.Minutes)
				logger.Info("Secret cache duration is now %v minutes", s.VaultSecretCacheDuration)
			})
			if err := cfg.Store().Watch(ctx); err != nil {
				logger.Warn("Settings hot reload disabled: %v", err)
			}

			runCfg := vaultserver.DefaultConfig()
			if addr != "" {
				runCfg.Addr = addr
			}
			return srv.Run(ctx, runCfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:8787)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default: vault.db in the settings dir)")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "Keep proofs in memory only")

	return cmd
}

func openProofStore(dbPath string, inMemory bool) (vaultserver.Store, func(), error) {
	if inMemory {
		return vaultserver.NewMemoryStore(), func() {}, nil
	}

	if dbPath == "" {
		dir, err := settings.DefaultDir()
		if err != nil {
			return nil, nil, err
		}
		dbPath = filepath.Join(dir, "vault.db")
	}

	store, err := vaultserver.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
