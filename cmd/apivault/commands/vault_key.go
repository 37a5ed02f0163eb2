package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/internal/config"
	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/vaultkey"
)

// NewVaultKeyCommand creates the vault-key command group
func NewVaultKeyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault-key",
		Short: "Manage the end-to-end vault key",
		Long: `Manage the vault key that encrypts your account's vault.

The vault key never leaves this machine. The backend only stores a salt and
an SRP verifier, and proves knowledge of the key without learning it.`,
	}

	cmd.AddCommand(
		newVaultKeyRegisterCommand(cfg),
		newVaultKeyValidateCommand(cfg),
		newVaultKeyResetCommand(cfg),
		newVaultKeyShowCommand(cfg),
		newVaultKeyLockCommand(cfg),
		newVaultKeyStatusCommand(cfg),
	)
	return cmd
}

func printNewKey(w io.Writer, vaultKey string) error {
	_, err := fmt.Fprintf(w, `%s

Store this vault key somewhere safe. It cannot be recovered if lost.
`, vaultKey)
	return err
}

func newVaultKeyRegisterCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create the account's first vault key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			state, err := engine.Load(cmd.Context())
			if err != nil {
				return err
			}
			if state != vaultkey.StateNoVaultKey {
				return apierrors.UserError{
					Message:    "A vault key is already registered for this account",
					Suggestion: "Use 'apivault vault-key validate' to unlock it or 'apivault vault-key reset' to replace it",
				}
			}

			vaultKey, err := engine.Register(cmd.Context())
			if err != nil {
				return vaultError("register", err)
			}
			return printNewKey(cmd.OutOrStdout(), vaultKey)
		},
	}
}

func newVaultKeyValidateCommand(cfg *config.Config) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "validate [vault-key]",
		Short: "Unlock the session with a vault key",
		Long: `Prove a vault key against the backend and, when it is valid, save it to
the session.

Without a key argument the key is read from $APIVAULT_VAULT_KEY, then from
standard input with --stdin, and finally from the OS credential store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			sess, err := cfg.SessionFile().Load(cmd.Context())
			if err != nil {
				return err
			}

			vaultKey := strings.TrimSpace(os.Getenv("APIVAULT_VAULT_KEY"))
			if len(args) == 1 {
				vaultKey = strings.TrimSpace(args[0])
			}
			if vaultKey == "" && fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				vaultKey = strings.TrimSpace(line)
			}

			if vaultKey == "" {
				ok, err := engine.RecoverFromKeychain(cmd.Context())
				if err != nil {
					return vaultError("validate", err)
				}
				if !ok {
					return apierrors.UserError{
						Message:    "No vault key given",
						Suggestion: "Pass the vault key as an argument, set APIVAULT_VAULT_KEY or use --stdin",
					}
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Vault unlocked with the key from the OS credential store")
				return err
			}

			if _, err := engine.Authenticate(cmd.Context(), sess.VaultSalt, vaultKey); err != nil {
				return vaultError("validate", err)
			}
			if err := engine.SaveVaultKey(cmd.Context(), vaultKey); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Vault key is valid")
			return err
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the vault key from standard input")
	return cmd
}

func newVaultKeyResetCommand(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the vault key",
		Long: `Replace the account's vault key with a new one.

Everything encrypted with the old vault key becomes unreadable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return apierrors.UserError{
					Message:    "Resetting the vault key makes existing vault data unreadable",
					Suggestion: "Re-run with --yes to confirm",
				}
			}

			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			if _, err := engine.Load(cmd.Context()); err != nil {
				return err
			}

			vaultKey, err := engine.Reset(cmd.Context())
			if err != nil {
				return vaultError("reset", err)
			}
			return printNewKey(cmd.OutOrStdout(), vaultKey)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func newVaultKeyShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the unlocked vault key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			vaultKey, err := engine.VaultKey(cmd.Context())
			if err != nil {
				return err
			}
			if vaultKey == "" {
				return apierrors.UserError{
					Message:    "The vault is locked",
					Suggestion: "Unlock it with 'apivault vault-key validate'",
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), vaultKey)
			return err
		},
	}
}

func newVaultKeyLockCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Forget the vault key on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			if err := engine.Lock(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Vault locked")
			return err
		},
	}
}

func newVaultKeyStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the local vault key state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newVaultEngine(cfg)
			if err != nil {
				return err
			}
			state, err := engine.Load(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), state)
			return err
		},
	}
}
