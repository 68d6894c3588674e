package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

func TestBuiltinSeedDataParses(t *testing.T) {
	seeds, err := loadSeedData(builtinSeedData)
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	for _, s := range seeds {
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Content)
	}
}

func TestImportBuiltinSeedData_OnlyIntoEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{Storage: database.StorageFile, PromptsDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	registry := service.NewRegistryService(db, service.WithMetrics(telemetry.Noop()))

	seeds, err := loadSeedData(builtinSeedData)
	require.NoError(t, err)

	created, err := ImportBuiltinSeedData(ctx, registry)
	require.NoError(t, err)
	assert.Equal(t, len(seeds), created)

	created, err = ImportBuiltinSeedData(ctx, registry)
	require.NoError(t, err)
	assert.Zero(t, created)

	stats, err := registry.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seeds), stats.Total)

	review, err := registry.SearchPrompts(ctx, "senior")
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, []string{"language", "code"}, review[0].Variables)
	assert.Equal(t, 1, stats.Categories["system"])
}
