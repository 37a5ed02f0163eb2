package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/cloud"
	"github.com/systmms/apivault/internal/config"
	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/keychain"
	"github.com/systmms/apivault/internal/metrics"
	"github.com/systmms/apivault/internal/vaultkey"
	"github.com/systmms/apivault/internal/vaultsecrets"
)

// awsFlags collects a temporary AWS credential from flags, falling back to
// the standard AWS environment variables
type awsFlags struct {
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	region          string
}

func (f *awsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.accessKeyID, "access-key-id", "", "AWS access key id (default: $AWS_ACCESS_KEY_ID)")
	cmd.Flags().StringVar(&f.secretAccessKey, "secret-access-key", "", "AWS secret access key (default: $AWS_SECRET_ACCESS_KEY)")
	cmd.Flags().StringVar(&f.sessionToken, "session-token", "", "AWS session token (default: $AWS_SESSION_TOKEN)")
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region (default: $AWS_REGION)")
}

func (f *awsFlags) credential() (cloud.AWSTemporaryCredential, error) {
	cred := cloud.AWSTemporaryCredential{
		Type:            cloud.AWSTemporaryCredentialType,
		AccessKeyID:     firstNonEmpty(f.accessKeyID, os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretAccessKey: firstNonEmpty(f.secretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY")),
		SessionToken:    firstNonEmpty(f.sessionToken, os.Getenv("AWS_SESSION_TOKEN")),
		Region:          firstNonEmpty(f.region, os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION")),
	}

	if cred.AccessKeyID == "" || cred.SecretAccessKey == "" {
		return cred, apierrors.UserError{
			Message:    "AWS credentials are required",
			Suggestion: "Pass --access-key-id and --secret-access-key or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
		}
	}
	if cred.Region == "" {
		return cred, apierrors.UserError{
			Message:    "AWS region is required",
			Suggestion: "Pass --region or set AWS_REGION",
		}
	}
	return cred, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// serviceFactory builds the secrets service for a command. Tests replace it
// to inject fake AWS clients.
type serviceFactory func(cfg *config.Config) (*vaultsecrets.Service, error)

func defaultServiceFactory(cfg *config.Config) (*vaultsecrets.Service, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return vaultsecrets.New(
		vaultsecrets.WithSettings(cfg.Store()),
		vaultsecrets.WithLogger(cfg.Logger.With("secrets")),
		vaultsecrets.WithMetrics(metrics.NewRecorder()),
	)
}

// newVaultEngine builds an engine against the configured backend, with the
// session key encrypted under a key kept in the OS credential store
func newVaultEngine(cfg *config.Config) (*vaultkey.Engine, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	store := keychain.New()
	enc, err := store.NewEncryptor()
	if err != nil {
		cfg.Logger.Warn("OS credential store unavailable, the session vault key will not be encrypted: %v", err)
	}

	engine := vaultkey.NewEngine(
		vaultkey.NewHTTPBackend(cfg.Backend()),
		cfg.SessionFile(),
		vaultkey.WithEncryptor(enc),
		vaultkey.WithCredentialStore(store),
		vaultkey.WithSettings(cfg.Store()),
		vaultkey.WithLogger(cfg.Logger.With("vault-key")),
	)
	return engine, nil
}

// vaultError turns engine errors into user errors with a suggestion
func vaultError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if vaultkey.IsInvalidKey(err) {
		return apierrors.UserError{
			Message:    "The vault key is not valid for this account",
			Suggestion: "Check the vault key you entered. If it is lost, reset it with 'apivault vault-key reset'",
			Err:        err,
		}
	}
	if errors.Is(err, vaultkey.ErrNoAccount) {
		return apierrors.UserError{
			Message:    "No account is selected",
			Suggestion: "Run 'apivault account use <account-id>' first",
			Err:        err,
		}
	}
	return apierrors.ProviderError("vault", operation, err)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
