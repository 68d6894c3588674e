package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/config"
	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage:        database.StorageFile,
		PromptsDir:     t.TempDir(),
		LockTimeout:    time.Second,
		HTTPAddress:    "127.0.0.1:0",
		CORSOrigins:    []string{"*"},
		MCPTransport:   "stdio",
		LogLevel:       "error",
		EventLogging:   *logging.DefaultEventLoggingConfig(),
		DisableMetrics: true,
	}
}

type countingDB struct {
	database.Database
	saves int
}

func (c *countingDB) SavePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
	c.saves++
	return c.Database.SavePrompt(ctx, in)
}

func TestNewApp_AppliesFactories(t *testing.T) {
	ctx := context.Background()
	var wrapped *countingDB
	var created service.RegistryService

	app, err := NewApp(ctx, testConfig(t), &types.AppOptions{
		DatabaseFactory: func(_ context.Context, base database.Database) (database.Database, error) {
			wrapped = &countingDB{Database: base}
			return wrapped, nil
		},
		OnServiceCreated: func(s service.RegistryService) { created = s },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(ctx) })

	assert.Same(t, app.Registry(), created)
	_, err = app.Registry().CreatePrompt(ctx, &models.CreatePromptInput{Name: "a", Content: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, wrapped.saves)
}

func TestNewApp_SeedsBuiltinPrompts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SeedBuiltin = true

	app, err := NewApp(ctx, cfg, nil)
	require.NoError(t, err)
	stats, err := app.Registry().GetStats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.Total)
	require.NoError(t, app.Close(ctx))

	// A second start over the same storage must not duplicate the seeds.
	app, err = NewApp(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(ctx) })
	again, err := app.Registry().GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Total, again.Total)
}

func TestNewApp_DatabaseFactoryError(t *testing.T) {
	_, err := NewApp(context.Background(), testConfig(t), &types.AppOptions{
		DatabaseFactory: func(context.Context, database.Database) (database.Database, error) {
			return nil, errors.New("boom")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = "cassandra"

	_, err := NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestServeHTTP_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableMetrics = false
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.ServeHTTP(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
