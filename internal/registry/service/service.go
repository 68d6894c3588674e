package service

import (
	"context"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// RegistryService defines the interface for prompt registry operations
type RegistryService interface {
	// CreatePrompt validates in and stores it as version 1 of a new prompt
	CreatePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error)
	// GetPrompt returns the current prompt, or the snapshot at version when version > 0
	GetPrompt(ctx context.Context, id string, version int) (*models.Prompt, error)
	// ListPrompts returns one page of prompts matching filter
	ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error)
	// UpdatePrompt applies a partial update and writes a new version
	UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error)
	// DeletePrompt removes one version, or the whole prompt when version is 0
	DeletePrompt(ctx context.Context, id string, version int) (bool, error)
	// ListPromptVersions returns the stored version numbers in ascending order
	ListPromptVersions(ctx context.Context, id string) ([]int, error)

	// ApplyTemplate substitutes variables into a template prompt's content
	ApplyTemplate(ctx context.Context, id string, variables map[string]string) (string, error)
	// SearchPrompts returns every prompt whose name, content, description or tags contain query
	SearchPrompts(ctx context.Context, query string) ([]*models.Prompt, error)
	// GetStats aggregates counts over every stored prompt
	GetStats(ctx context.Context) (*models.Stats, error)

	HealthCheck(ctx context.Context) bool
}
