// Package seed ships a small set of starter prompts.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

//go:embed seed.json
var builtinSeedData []byte

// ImportBuiltinSeedData adds the starter prompts to an empty registry and
// returns how many were created. A registry that already holds prompts is
// left untouched, so restarts never duplicate the seeds.
func ImportBuiltinSeedData(ctx context.Context, registry service.RegistryService) (int, error) {
	existing, err := registry.ListPrompts(ctx, &models.PromptFilter{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to check for existing prompts: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeds, err := loadSeedData(builtinSeedData)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range seeds {
		if importPrompt(ctx, registry, &seeds[i]) {
			created++
		}
	}
	return created, nil
}

func loadSeedData(data []byte) ([]models.CreatePromptInput, error) {
	var seeds []models.CreatePromptInput
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return seeds, nil
}

func importPrompt(ctx context.Context, registry service.RegistryService, in *models.CreatePromptInput) bool {
	p, err := registry.CreatePrompt(ctx, in)
	if err != nil {
		logging.Log(ctx, logging.ServiceLog, zapcore.ErrorLevel, "failed to import builtin prompt", zap.String("name", in.Name), zap.Error(err))
		return false
	}
	logging.Log(ctx, logging.ServiceLog, zapcore.InfoLevel, "imported builtin prompt", zap.String("name", p.Name), zap.String("id", p.ID))
	return true
}
