package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/cloud"
	"github.com/systmms/apivault/internal/config"
	"github.com/systmms/apivault/internal/vaultsecrets"
)

// NewProvidersCommand lists the registered cloud providers
func NewProvidersCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List supported cloud providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := vaultsecrets.DefaultRegistry()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tPROVIDER\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t--------\t-----------\n")
			for _, name := range registry.Names() {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, cloud.DisplayName(name), getProviderDescription(name))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if verbose {
				for _, name := range registry.Names() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", cloud.DisplayName(name))
					for _, detail := range getProviderDetails(name) {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  • %s\n", detail)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed provider information")
	return cmd
}

// getProviderDescription returns a description for a provider
func getProviderDescription(name cloud.ProviderName) string {
	descriptions := map[cloud.ProviderName]string{
		cloud.AWS:   "AWS Secrets Manager with STS temporary credentials",
		cloud.Azure: "Azure Key Vault",
		cloud.GCP:   "Google Cloud Secret Manager",
	}
	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "No description available"
}

// getProviderDetails returns detailed information for a provider
func getProviderDetails(name cloud.ProviderName) []string {
	details := map[cloud.ProviderName][]string{
		cloud.AWS: {
			"Credentials: access key id, secret access key, session token and region",
			"Authorize calls sts:GetCallerIdentity",
			"Secrets are read with secretsmanager:GetSecretValue",
			"Select versions with --version-id or --version-stage (AWSCURRENT, AWSPREVIOUS)",
			"Read one field of a JSON secret with --key",
		},
	}
	if d, ok := details[name]; ok {
		return d
	}
	return []string{"No details available"}
}
