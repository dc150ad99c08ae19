package server

import (
	"HealthConnect/repository"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MONGO_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")

	opts, err := GetDefaultOptions()
	require.NoError(t, err)
	app, err := Bootstrap(context.Background(), opts)
	require.NoError(t, err)
	return app
}

func TestCloseRunsShutdownHooksFirst(t *testing.T) {
	app := memoryApp(t)
	ctx := context.Background()

	var order []string
	app.OnShutdown(func(context.Context) { order = append(order, "jobs") })
	app.OnShutdown(func(ctx context.Context) {
		_, err := app.Store.Accounts().Count(ctx, repository.AccountFilter{})
		assert.NoError(t, err, "store still open while hooks run")
		order = append(order, "late")
	})

	app.Close(ctx)
	assert.Equal(t, []string{"late", "jobs"}, order)

	app.Close(ctx)
	assert.Len(t, order, 2, "hooks run once")
}
