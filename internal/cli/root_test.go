package cli

import (
	"testing"

	"cafe-order-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate"}, names)
	require.NotNil(t, cmd.PersistentFlags().Lookup("store"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("addr"))
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("STORE_DRIVER", "postgres")

	opts := &RootOptions{Addr: ":7000", StoreDriver: config.StoreDriverMemory}
	cfg := opts.load()
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, config.StoreDriverMemory, cfg.StoreDriver)

	opts = &RootOptions{StoreDriver: "sqlite"}
	cfg = opts.load()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, config.StoreDriverPostgres, cfg.StoreDriver)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}
