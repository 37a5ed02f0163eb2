package commands

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/apivault/internal/config"
	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/vaultserver"
)

// The vault-key tests share the process-wide keyring mock and do not run in
// parallel.

func newVaultTestConfig(t *testing.T, settingsYAML string) *config.Config {
	t.Helper()
	keyring.MockInit()
	t.Setenv("APIVAULT_VAULT_KEY", "")

	srv, err := vaultserver.New(vaultserver.NewMemoryStore())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.yaml")
	if settingsYAML != "" {
		require.NoError(t, os.WriteFile(settingsPath, []byte(settingsYAML), 0o600))
	}

	return &config.Config{
		SettingsPath: settingsPath,
		SessionPath:  filepath.Join(dir, "session.yaml"),
		BackendURL:   ts.URL,
		Logger:       logging.New(false, true),
	}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func vaultKeyCmd(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	return execute(t, NewVaultKeyCommand(cfg), "", args...)
}

func firstLine(s string) string {
	return strings.SplitN(s, "\n", 2)[0]
}

func TestVaultKeyLifecycle(t *testing.T) {
	cfg := newVaultTestConfig(t, "")

	out, err := vaultKeyCmd(t, cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, "no-vault-key\n", out)

	_, err = vaultKeyCmd(t, cfg, "register")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No account is selected")

	out, err = execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Using account acct_1")

	out, err = vaultKeyCmd(t, cfg, "register")
	require.NoError(t, err)
	vaultKey := firstLine(out)
	require.NotEmpty(t, vaultKey)
	assert.Contains(t, out, "cannot be recovered")

	session, err := os.ReadFile(cfg.SessionPath)
	require.NoError(t, err)
	assert.NotContains(t, string(session), vaultKey, "session copy is encrypted")

	_, err = vaultKeyCmd(t, cfg, "register")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	out, err = vaultKeyCmd(t, cfg, "show")
	require.NoError(t, err)
	assert.Equal(t, vaultKey+"\n", out)

	out, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)
	assert.Equal(t, "Vault locked\n", out)

	out, err = vaultKeyCmd(t, cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, "locked\n", out)

	_, err = vaultKeyCmd(t, cfg, "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")

	other := "eyJrdHkiOiJvY3QifQ=="
	_, err = vaultKeyCmd(t, cfg, "validate", other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")

	out, err = vaultKeyCmd(t, cfg, "validate", vaultKey)
	require.NoError(t, err)
	assert.Equal(t, "Vault key is valid\n", out)

	out, err = vaultKeyCmd(t, cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, "unlocked\n", out)

	out, err = vaultKeyCmd(t, cfg, "show")
	require.NoError(t, err)
	assert.Equal(t, vaultKey+"\n", out)
}

func TestVaultKeyReset(t *testing.T) {
	cfg := newVaultTestConfig(t, "")

	_, err := execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	out, err := vaultKeyCmd(t, cfg, "register")
	require.NoError(t, err)
	oldKey := firstLine(out)

	_, err = vaultKeyCmd(t, cfg, "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err = vaultKeyCmd(t, cfg, "reset", "--yes")
	require.NoError(t, err)
	newKey := firstLine(out)
	assert.NotEqual(t, oldKey, newKey)

	_, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)

	_, err = vaultKeyCmd(t, cfg, "validate", oldKey)
	require.Error(t, err)

	_, err = execute(t, NewVaultKeyCommand(cfg), newKey+"\n", "validate", "--stdin")
	require.NoError(t, err)
}

func TestVaultKeyValidateTrimsWhitespace(t *testing.T) {
	cfg := newVaultTestConfig(t, "")

	_, err := execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	out, err := vaultKeyCmd(t, cfg, "register")
	require.NoError(t, err)
	vaultKey := firstLine(out)

	_, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)
	t.Setenv("APIVAULT_VAULT_KEY", vaultKey+"\n")
	out, err = vaultKeyCmd(t, cfg, "validate")
	require.NoError(t, err)
	assert.Equal(t, "Vault key is valid\n", out)

	_, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)
	t.Setenv("APIVAULT_VAULT_KEY", "")
	out, err = vaultKeyCmd(t, cfg, "validate", "  "+vaultKey+"\r\n")
	require.NoError(t, err)
	assert.Equal(t, "Vault key is valid\n", out)

	out, err = vaultKeyCmd(t, cfg, "show")
	require.NoError(t, err)
	assert.Equal(t, vaultKey+"\n", out)
}

func TestVaultKeyValidateFromKeychain(t *testing.T) {
	cfg := newVaultTestConfig(t, "saveVaultKeyToOSSecretManager: true\n")

	_, err := execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	_, err = vaultKeyCmd(t, cfg, "register")
	require.NoError(t, err)
	_, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)

	out, err := vaultKeyCmd(t, cfg, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "OS credential store")

	out, err = vaultKeyCmd(t, cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, "unlocked\n", out)
}

func TestVaultKeyValidateWithoutKey(t *testing.T) {
	cfg := newVaultTestConfig(t, "")

	_, err := execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	_, err = vaultKeyCmd(t, cfg, "register")
	require.NoError(t, err)
	_, err = vaultKeyCmd(t, cfg, "lock")
	require.NoError(t, err)

	// mirroring is off, so the credential store has nothing to offer
	_, err = vaultKeyCmd(t, cfg, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No vault key given")
}

func TestVaultKeyBackendDown(t *testing.T) {
	cfg := newVaultTestConfig(t, "")
	cfg.BackendURL = "http://127.0.0.1:1"

	_, err := execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)

	_, err = vaultKeyCmd(t, cfg, "register")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault error during register")
}
