package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestServeFlags(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	for _, name := range []string{"seed", "migrate"} {
		f := serve.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "false", f.DefValue)
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	out, err := runRoot(t, "token", "--user", "42", "--role", "staff")
	require.NoError(t, err)
	claims, err := utils.ParseAccessToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "STAFF", claims.Role)
	assert.Equal(t, "42", claims.Subject)

	_, err = runRoot(t, "token", "--user", "42", "--role", "admin")
	assert.ErrorContains(t, err, "invalid role")
	_, err = runRoot(t, "token")
	assert.ErrorContains(t, err, "--user")
}

func TestMigrateCommand_MemoryDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := runRoot(t, "migrate")
	assert.ErrorContains(t, err, "nothing to migrate")
}

func TestOpenBackend_Memory(t *testing.T) {
	ctx := context.Background()
	be, err := openBackend(ctx, config.Config{StorageDriver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	defer be.close()
	assert.Nil(t, be.ping)
	require.NoError(t, be.migrate(ctx))
	require.NoError(t, be.seedDemo(ctx))

	services, err := be.store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, services, 8)
	ev, err := be.store.GetEvent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, ev.SeatsTotal, ev.SeatsRemaining)
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := openBackend(context.Background(), config.Config{StorageDriver: "sqlite"}, zap.NewNop())
	assert.ErrorContains(t, err, "sqlite")
}
