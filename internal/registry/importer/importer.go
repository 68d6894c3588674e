package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const registryPageSize = 100

var log = logging.NewLogger("importer")

// Service handles importing seed data into the registry
type Service struct {
	registry       service.RegistryService
	httpClient     *http.Client
	requestHeaders map[string]string
	updateIfExists bool
}

// NewService creates a new importer service with sane defaults
func NewService(registry service.RegistryService) *Service {
	return &Service{
		registry:       registry,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		requestHeaders: map[string]string{},
	}
}

// SetRequestHeaders replaces headers used for HTTP fetches
func (s *Service) SetRequestHeaders(headers map[string]string) {
	s.requestHeaders = headers
}

// SetHTTPClient overrides the HTTP client used for fetches
func (s *Service) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// SetUpdateIfExists toggles updating a stored prompt with the same name
// instead of creating a second prompt alongside it
func (s *Service) SetUpdateIfExists(update bool) {
	s.updateIfExists = update
}

// Result summarizes an import run.
type Result struct {
	Created int
	Updated int
	Failed  []string
}

// ImportFromPath imports seed data from various sources:
// 1. Local files - a JSON or YAML array of prompt definitions
// 2. Direct HTTP URLs to a seed file in either format
// 3. Registry API endpoints ending in /prompts - pages are fetched until exhausted
func (s *Service) ImportFromPath(ctx context.Context, path string) (*Result, error) {
	seeds, err := s.readSeedFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed data: %w", err)
	}

	existing := map[string]string{}
	if s.updateIfExists {
		if existing, err = s.indexByName(ctx); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	total := len(seeds)
	for i, seed := range seeds {
		log.Info("importing prompt", zap.Int("index", i+1), zap.Int("total", total), zap.String("name", seed.Name))

		if id, ok := existing[seed.Name]; ok {
			if _, err := s.registry.UpdatePrompt(ctx, id, toPatch(&seed)); err != nil {
				result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", seed.Name, err))
				log.Warn("failed to update existing prompt", zap.String("name", seed.Name), zap.Error(err))
				continue
			}
			result.Updated++
			continue
		}

		created, err := s.registry.CreatePrompt(ctx, &seed)
		if err != nil {
			result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", seed.Name, err))
			log.Warn("failed to create prompt", zap.String("name", seed.Name), zap.Error(err))
			continue
		}
		existing[seed.Name] = created.ID
		result.Created++
	}

	if len(result.Failed) > 0 {
		log.Error("import completed with errors",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Strings("failed", result.Failed))
		return result, fmt.Errorf("failed to import %d prompts", len(result.Failed))
	}

	log.Info("import completed", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return result, nil
}

// indexByName maps prompt names to ids. When names repeat the most recently
// updated prompt wins, since listing is newest first.
func (s *Service) indexByName(ctx context.Context) (map[string]string, error) {
	index := map[string]string{}
	for offset := 0; ; offset += registryPageSize {
		page, err := s.registry.ListPrompts(ctx, &models.PromptFilter{Limit: registryPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list existing prompts: %w", err)
		}
		for _, p := range page {
			if _, ok := index[p.Name]; !ok {
				index[p.Name] = p.ID
			}
		}
		if len(page) < registryPageSize {
			return index, nil
		}
	}
}

func toPatch(seed *models.CreatePromptInput) *models.UpdatePromptInput {
	patch := &models.UpdatePromptInput{
		Name:        &seed.Name,
		Content:     &seed.Content,
		Description: seed.Description,
		IsTemplate:  &seed.IsTemplate,
		Category:    seed.Category,
	}
	if seed.Tags != nil {
		patch.Tags = &seed.Tags
	}
	if seed.Metadata != nil {
		patch.Metadata = &seed.Metadata
	}
	if seed.Variables != nil {
		patch.Variables = &seed.Variables
	}
	return patch
}

// readSeedFile reads seed data from various sources
func (s *Service) readSeedFile(ctx context.Context, path string) ([]models.CreatePromptInput, error) {
	var data []byte
	var err error

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if strings.HasSuffix(strings.TrimSuffix(path, "/"), "/prompts") {
			return s.fetchFromRegistryAPI(ctx, path)
		}
		data, err = s.fetchFromHTTP(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read seed data from %s: %w", path, err)
	}

	return decodeSeeds(path, data)
}

// decodeSeeds parses a seed array. YAML is a superset of JSON, but JSON
// input goes through encoding/json so that its error messages stay precise.
func decodeSeeds(path string, data []byte) ([]models.CreatePromptInput, error) {
	var seeds []models.CreatePromptInput
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return nil, fmt.Errorf("failed to parse seed data as a YAML prompt array: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &seeds); err != nil {
			return nil, fmt.Errorf("failed to parse seed data as a JSON prompt array: %w", err)
		}
	}
	return seeds, nil
}

func (s *Service) fetchFromHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for k, v := range s.requestHeaders {
		req.Header.Set(k, v)
	}

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from HTTP: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// fetchFromRegistryAPI copies prompts out of another registry's list endpoint.
func (s *Service) fetchFromRegistryAPI(ctx context.Context, baseURL string) ([]models.CreatePromptInput, error) {
	var seeds []models.CreatePromptInput

	for offset := 0; ; offset += registryPageSize {
		pageURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid registry URL %s: %w", baseURL, err)
		}
		q := pageURL.Query()
		q.Set("limit", strconv.Itoa(registryPageSize))
		q.Set("offset", strconv.Itoa(offset))
		pageURL.RawQuery = q.Encode()

		data, err := s.fetchFromHTTP(ctx, pageURL.String())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
		}

		var page models.PromptListResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse registry response: %w", err)
		}

		for _, p := range page.Prompts {
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
			seeds = append(seeds, seed)
		}

		if len(page.Prompts) < registryPageSize {
			return seeds, nil
		}
	}
}
