package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const defaultPageSize = 100

// Service handles exporting registry data into seed files.
type Service struct {
	registryService service.RegistryService
	pageSize        int
}

// NewService creates a new exporter service.
func NewService(registryService service.RegistryService) *Service {
	return &Service{
		registryService: registryService,
		pageSize:        defaultPageSize,
	}
}

// SetPageSize allows tests to override the pagination size used when fetching
// prompts from the registry service.
func (s *Service) SetPageSize(size int) {
	if size > 0 {
		s.pageSize = size
	}
}

// ExportToPath collects the current version of every prompt and writes them
// to outputPath in the seed format read by the importer. Paths ending in
// .yaml or .yml are written as YAML, everything else as JSON.
func (s *Service) ExportToPath(ctx context.Context, outputPath string) (int, error) {
	if s.registryService == nil {
		return 0, fmt.Errorf("registry service is not initialized")
	}

	seeds, err := s.collectPrompts(ctx)
	if err != nil {
		return 0, err
	}

	if err := ensureDir(outputPath); err != nil {
		return 0, err
	}

	data, err := encode(outputPath, seeds)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal prompts for export: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write export file %s: %w", outputPath, err)
	}

	return len(seeds), nil
}

func (s *Service) collectPrompts(ctx context.Context) ([]models.CreatePromptInput, error) {
	pageSize := s.pageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	seeds := []models.CreatePromptInput{}
	seen := map[string]bool{}
	for offset := 0; ; offset += pageSize {
		page, err := s.registryService.ListPrompts(ctx, &models.PromptFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list prompts: %w", err)
		}

		for _, p := range page {
			if p == nil || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			seeds = append(seeds, toSeed(p))
		}

		if len(page) < pageSize {
			break
		}
	}

	return seeds, nil
}

func toSeed(p *models.Prompt) models.CreatePromptInput {
	seed := models.CreatePromptInput{
		Name:        p.Name,
		Content:     p.Content,
		Description: p.Description,
		IsTemplate:  p.IsTemplate,
		Tags:        p.Tags,
		Category:    p.Category,
		Metadata:    p.Metadata,
	}
	if !p.IsTemplate {
		seed.Variables = p.Variables
	}
	return seed
}

func encode(outputPath string, seeds []models.CreatePromptInput) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".yaml", ".yml":
		return yaml.Marshal(seeds)
	default:
		return json.MarshalIndent(seeds, "", "  ")
	}
}

func ensureDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}

	return nil
}
