// Package testing provides test utilities for the registry service.
package testing

import (
	"context"
	"sync"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

// FakeRegistry is a configurable fake implementation of service.RegistryService for testing.
// It supports both data-driven setup via struct fields and function hooks for custom behavior.
type FakeRegistry struct {
	mu sync.Mutex

	// Data fields for simple data-driven tests
	Prompts []*models.Prompt
	Stats   *models.Stats
	Healthy bool

	// Call counters for verification
	CreatePromptCalls int
	DeletePromptCalls int

	// Function hooks for custom behavior (take precedence over data fields when set)
	CreatePromptFn       func(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error)
	GetPromptFn          func(ctx context.Context, id string, version int) (*models.Prompt, error)
	ListPromptsFn        func(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error)
	UpdatePromptFn       func(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error)
	DeletePromptFn       func(ctx context.Context, id string, version int) (bool, error)
	ListPromptVersionsFn func(ctx context.Context, id string) ([]int, error)
	ApplyTemplateFn      func(ctx context.Context, id string, variables map[string]string) (string, error)
	SearchPromptsFn      func(ctx context.Context, query string) ([]*models.Prompt, error)
	GetStatsFn           func(ctx context.Context) (*models.Stats, error)
}

// NewFakeRegistry creates a new healthy FakeRegistry with no prompts.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{Healthy: true}
}

func (f *FakeRegistry) CreatePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
	f.mu.Lock()
	f.CreatePromptCalls++
	f.mu.Unlock()
	if f.CreatePromptFn != nil {
		return f.CreatePromptFn(ctx, in)
	}
	return nil, database.ErrInvalidInput
}

func (f *FakeRegistry) GetPrompt(ctx context.Context, id string, version int) (*models.Prompt, error) {
	if f.GetPromptFn != nil {
		return f.GetPromptFn(ctx, id, version)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Prompts {
		if p.ID == id && (version == 0 || p.Version == version) {
			return p, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *FakeRegistry) ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
	if f.ListPromptsFn != nil {
		return f.ListPromptsFn(ctx, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	offset := min(filter.EffectiveOffset(), len(f.Prompts))
	end := min(offset+filter.EffectiveLimit(), len(f.Prompts))
	return f.Prompts[offset:end], nil
}

func (f *FakeRegistry) UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	if f.UpdatePromptFn != nil {
		return f.UpdatePromptFn(ctx, id, patch)
	}
	return nil, database.ErrNotFound
}

func (f *FakeRegistry) DeletePrompt(ctx context.Context, id string, version int) (bool, error) {
	f.mu.Lock()
	f.DeletePromptCalls++
	f.mu.Unlock()
	if f.DeletePromptFn != nil {
		return f.DeletePromptFn(ctx, id, version)
	}
	return false, nil
}

func (f *FakeRegistry) ListPromptVersions(ctx context.Context, id string) ([]int, error) {
	if f.ListPromptVersionsFn != nil {
		return f.ListPromptVersionsFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := []int{}
	for _, p := range f.Prompts {
		if p.ID == id {
			for v := 1; v <= p.Version; v++ {
				versions = append(versions, v)
			}
		}
	}
	return versions, nil
}

func (f *FakeRegistry) ApplyTemplate(ctx context.Context, id string, variables map[string]string) (string, error) {
	if f.ApplyTemplateFn != nil {
		return f.ApplyTemplateFn(ctx, id, variables)
	}
	return "", database.ErrNotFound
}

func (f *FakeRegistry) SearchPrompts(ctx context.Context, query string) ([]*models.Prompt, error) {
	if f.SearchPromptsFn != nil {
		return f.SearchPromptsFn(ctx, query)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Prompts, nil
}

func (f *FakeRegistry) GetStats(ctx context.Context) (*models.Stats, error) {
	if f.GetStatsFn != nil {
		return f.GetStatsFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Stats != nil {
		return f.Stats, nil
	}
	return &models.Stats{Categories: map[string]int{}, Tags: map[string]int{}}, nil
}

func (f *FakeRegistry) HealthCheck(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Healthy
}
