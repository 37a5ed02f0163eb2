package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/config"
	"github.com/systmms/apivault/internal/settings"
)

// NewAccountCommand creates the account command group. Sign-in itself is
// handled by the API client; these commands only pick the account whose
// vault key is managed.
func NewAccountCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Select the account whose vault key is managed",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "use <account-id>",
			Short: "Switch the session to an account",
			Long: `Switch the session to an account.

Switching to a different account forgets the previous account's vault salt
and vault key.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := cfg.Load(); err != nil {
					return err
				}
				sessions := cfg.SessionFile()

				sess, err := sessions.Load(cmd.Context())
				if err != nil {
					return err
				}
				if sess.AccountID == args[0] {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "Already using account %s\n", args[0])
					return err
				}

				if err := sessions.Save(cmd.Context(), settings.Session{AccountID: args[0]}); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Using account %s\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the current account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := cfg.Load(); err != nil {
					return err
				}
				sess, err := cfg.SessionFile().Load(cmd.Context())
				if err != nil {
					return err
				}
				if sess.AccountID == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "No account selected")
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), sess.AccountID)
				return err
			},
		},
	)
	return cmd
}
