package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/cases"

	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/internal/registry/template"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

// scanBatchSize is the page size used when walking every stored prompt.
const scanBatchSize = 100

// registryServiceImpl implements the RegistryService interface using our Database
type registryServiceImpl struct {
	db      database.Database
	engine  template.Engine
	metrics *telemetry.Metrics
}

// Option customizes a registry service.
type Option func(*registryServiceImpl)

// WithEngine replaces the default template engine.
func WithEngine(engine template.Engine) Option {
	return func(s *registryServiceImpl) { s.engine = engine }
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *registryServiceImpl) { s.metrics = m }
}

// NewRegistryService creates a new registry service backed by db
func NewRegistryService(db database.Database, opts ...Option) RegistryService {
	s := &registryServiceImpl{
		db:      db,
		engine:  template.Default,
		metrics: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *registryServiceImpl) CreatePrompt(ctx context.Context, in *models.CreatePromptInput) (prompt *models.Prompt, err error) {
	defer s.observe(ctx, "create_prompt", time.Now(), &err)

	prompt, err = s.db.SavePrompt(ctx, in)
	if err != nil {
		return nil, err
	}
	logging.Log(ctx, logging.ServiceLog, zapcore.InfoLevel, "prompt created",
		zap.String("id", prompt.ID), zap.Bool("template", prompt.IsTemplate))
	return prompt, nil
}

func (s *registryServiceImpl) GetPrompt(ctx context.Context, id string, version int) (prompt *models.Prompt, err error) {
	defer s.observe(ctx, "get_prompt", time.Now(), &err)

	prompt, err = s.db.GetPromptByID(ctx, id, version)
	if err != nil {
		return nil, notFound(err, id, version)
	}
	return prompt, nil
}

func (s *registryServiceImpl) ListPrompts(ctx context.Context, filter *models.PromptFilter) (prompts []*models.Prompt, err error) {
	defer s.observe(ctx, "list_prompts", time.Now(), &err)

	return s.db.ListPrompts(ctx, filter)
}

func (s *registryServiceImpl) UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (prompt *models.Prompt, err error) {
	defer s.observe(ctx, "update_prompt", time.Now(), &err)

	prompt, err = s.db.UpdatePrompt(ctx, id, patch)
	if err != nil {
		return nil, notFound(err, id, 0)
	}
	logging.Log(ctx, logging.ServiceLog, zapcore.InfoLevel, "prompt updated",
		zap.String("id", prompt.ID), zap.Int("version", prompt.Version))
	return prompt, nil
}

func (s *registryServiceImpl) DeletePrompt(ctx context.Context, id string, version int) (deleted bool, err error) {
	defer s.observe(ctx, "delete_prompt", time.Now(), &err)

	deleted, err = s.db.DeletePrompt(ctx, id, version)
	if err != nil {
		return false, err
	}
	if deleted {
		logging.Log(ctx, logging.ServiceLog, zapcore.InfoLevel, "prompt deleted",
			zap.String("id", id), zap.Int("version", version))
	}
	return deleted, nil
}

func (s *registryServiceImpl) ListPromptVersions(ctx context.Context, id string) (versions []int, err error) {
	defer s.observe(ctx, "list_prompt_versions", time.Now(), &err)

	return s.db.ListPromptVersions(ctx, id)
}

// ApplyTemplate renders the current content of a template prompt.
func (s *registryServiceImpl) ApplyTemplate(ctx context.Context, id string, variables map[string]string) (text string, err error) {
	defer s.observe(ctx, "apply_template", time.Now(), &err)

	prompt, err := s.db.GetPromptByID(ctx, id, 0)
	if err != nil {
		return "", notFound(err, id, 0)
	}
	if !prompt.IsTemplate {
		return "", fmt.Errorf("prompt %s: %w", id, ErrNotATemplate)
	}
	return s.engine.ApplyWithValidation(prompt.Content, variables)
}

// SearchPrompts matches query against every prompt with Unicode case folding.
// A blank query is rejected rather than matching everything.
func (s *registryServiceImpl) SearchPrompts(ctx context.Context, query string) (matches []*models.Prompt, err error) {
	defer s.observe(ctx, "search_prompts", time.Now(), &err)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", database.ErrInvalidInput)
	}

	folder := cases.Fold()
	needle := folder.String(query)
	contains := func(field string) bool {
		return strings.Contains(folder.String(field), needle)
	}

	matches = []*models.Prompt{}
	err = s.scanAll(ctx, func(p *models.Prompt) {
		if contains(p.Name) || contains(p.Content) || (p.Description != nil && contains(*p.Description)) {
			matches = append(matches, p)
			return
		}
		for _, tag := range p.Tags {
			if contains(tag) {
				matches = append(matches, p)
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// GetStats counts prompts by kind, category and tag. Tag counts are
// occurrences across prompts.
func (s *registryServiceImpl) GetStats(ctx context.Context) (stats *models.Stats, err error) {
	defer s.observe(ctx, "get_stats", time.Now(), &err)

	stats = &models.Stats{
		Categories: map[string]int{},
		Tags:       map[string]int{},
	}
	err = s.scanAll(ctx, func(p *models.Prompt) {
		stats.Total++
		if p.IsTemplate {
			stats.Templates++
		} else {
			stats.Regular++
		}
		if p.Category != nil && *p.Category != "" {
			stats.Categories[*p.Category]++
		}
		for _, tag := range p.Tags {
			stats.Tags[tag]++
		}
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *registryServiceImpl) HealthCheck(ctx context.Context) bool {
	return s.db.HealthCheck(ctx)
}

// scanAll walks every stored prompt in batches. A prompt moved between pages
// by a concurrent update is visited at most once.
func (s *registryServiceImpl) scanAll(ctx context.Context, visit func(*models.Prompt)) error {
	seen := make(map[string]struct{})
	for offset := 0; ; offset += scanBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.db.ListPrompts(ctx, &models.PromptFilter{Limit: scanBatchSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to scan prompts at offset %d: %w", offset, err)
		}
		for _, p := range page {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			visit(p)
		}
		if len(page) < scanBatchSize {
			return nil
		}
	}
}

func (s *registryServiceImpl) observe(ctx context.Context, operation string, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	outcome := Outcome(err)
	s.metrics.Record(ctx, operation, outcome, started)

	level := zapcore.DebugLevel
	if outcome == telemetry.OutcomeError {
		level = zapcore.ErrorLevel
	}
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(started)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logging.Log(ctx, logging.ServiceLog, level, "operation completed", fields...)
}

// Outcome classifies err into one of the telemetry outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, database.ErrNotFound):
		return telemetry.OutcomeNotFound
	case errors.Is(err, database.ErrConflict):
		return telemetry.OutcomeConflict
	case errors.Is(err, database.ErrInvalidInput), errors.Is(err, ErrNotATemplate), errors.Is(err, template.ErrMissingVariable):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeError
	}
}
