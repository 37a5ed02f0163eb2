package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/apivault/internal/config"
	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/settings"
)

func TestAccountCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &config.Config{
		SettingsPath: filepath.Join(dir, "settings.yaml"),
		SessionPath:  filepath.Join(dir, "session.yaml"),
		Logger:       logging.New(false, true),
	}

	out, err := execute(t, NewAccountCommand(cfg), "", "show")
	require.NoError(t, err)
	assert.Equal(t, "No account selected\n", out)

	require.NoError(t, settings.NewSessionFile(cfg.SessionPath).Save(context.Background(), settings.Session{
		AccountID: "acct_1",
		VaultSalt: "aa",
		VaultKey:  "key",
	}))

	out, err = execute(t, NewAccountCommand(cfg), "", "use", "acct_1")
	require.NoError(t, err)
	assert.Equal(t, "Already using account acct_1\n", out)

	out, err = execute(t, NewAccountCommand(cfg), "", "use", "acct_2")
	require.NoError(t, err)
	assert.Equal(t, "Using account acct_2\n", out)

	sess, err := settings.NewSessionFile(cfg.SessionPath).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Session{AccountID: "acct_2"}, sess, "switching forgets the old vault state")

	out, err = execute(t, NewAccountCommand(cfg), "", "show")
	require.NoError(t, err)
	assert.Equal(t, "acct_2\n", out)
}
