package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/cloud"
	"github.com/systmms/apivault/internal/config"
	apierrors "github.com/systmms/apivault/internal/errors"
)

// NewSecretCommand creates the secret command group
func NewSecretCommand(cfg *config.Config) *cobra.Command {
	return newSecretCommand(cfg, defaultServiceFactory)
}

func newSecretCommand(cfg *config.Config, factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Fetch secrets from cloud secret managers",
		Long: `Fetch secrets from a cloud secret manager using temporary credentials.

Successful fetches are cached for vaultSecretCacheDuration minutes.`,
	}

	cmd.AddCommand(
		newSecretGetCommand(cfg, factory),
		newSecretAuthorizeCommand(cfg, factory),
	)
	return cmd
}

func newSecretGetCommand(cfg *config.Config, factory serviceFactory) *cobra.Command {
	var (
		creds        awsFlags
		provider     string
		versionID    string
		versionStage string
		key          string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "get <secret-name>",
		Short: "Get a secret value",
		Long: `Retrieve a secret and print its value.

Examples:
  # Print the current value
  apivault secret get prod/db-password --region us-east-1

  # Read one key of a JSON secret
  apivault secret get prod/api --key token

  # Print the full result envelope
  apivault secret get prod/api --version-stage AWSPREVIOUS --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cred, err := creds.credential()
			if err != nil {
				return err
			}

			svc, err := factory(cfg)
			if err != nil {
				return err
			}

			secretCfg := &cloud.SecretConfig{
				VersionID:    versionID,
				VersionStage: versionStage,
			}
			if key != "" {
				secretCfg.SecretType = cloud.SecretTypeKeyValue
				secretCfg.SecretKey = key
			}

			result, err := svc.GetSecret(cmd.Context(), cloud.ProviderName(provider), cred, name, secretCfg)
			if err != nil {
				return apierrors.SimplifyError(err)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			if !result.Success {
				return apierrors.ProviderError(provider, "get secret", serviceError(result.Error))
			}

			value, err := cloud.ExtractValue(*result.Result, secretCfg)
			if err != nil {
				return apierrors.UserError{
					Message:    fmt.Sprintf("Could not read %q from secret %s", key, name),
					Suggestion: "Check that the secret holds a JSON object with that key",
					Err:        err,
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}

	creds.register(cmd)
	cmd.Flags().StringVar(&provider, "provider", string(cloud.AWS), "Cloud provider")
	cmd.Flags().StringVar(&versionID, "version-id", "", "Secret version id")
	cmd.Flags().StringVar(&versionStage, "version-stage", "", "Secret version stage (e.g. AWSCURRENT)")
	cmd.Flags().StringVar(&key, "key", "", "Read this key from a JSON secret")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result envelope as JSON")

	return cmd
}

func newSecretAuthorizeCommand(cfg *config.Config, factory serviceFactory) *cobra.Command {
	var (
		creds    awsFlags
		provider string
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Check that credentials are accepted by the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := creds.credential()
			if err != nil {
				return err
			}

			svc, err := factory(cfg)
			if err != nil {
				return err
			}

			result, err := svc.Authorize(cmd.Context(), cloud.ProviderName(provider), cred)
			if err != nil {
				return apierrors.SimplifyError(err)
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return apierrors.ProviderError(provider, "authorize", serviceError(result.Error))
			}
			return nil
		},
	}

	creds.register(cmd)
	cmd.Flags().StringVar(&provider, "provider", string(cloud.AWS), "Cloud provider")
	return cmd
}

func serviceError(e *cloud.ServiceError) error {
	if e == nil {
		return &cloud.ServiceError{ErrorCode: cloud.UnknownErrorCode, ErrorMessage: "request failed"}
	}
	return e
}
