package models

import "time"

// Prompt is the current state of a named, versioned prompt.
// A prompt is a text string (e.g. a system prompt for an agent) that may contain
// {{variable}} placeholders when it is a template.
type Prompt struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Content     string         `json:"content" yaml:"content"`
	Description *string        `json:"description,omitempty" yaml:"description,omitempty"`
	IsTemplate  bool           `json:"isTemplate" yaml:"isTemplate"`
	Variables   []string       `json:"variables" yaml:"variables"`
	Tags        []string       `json:"tags" yaml:"tags"`
	Category    *string        `json:"category,omitempty" yaml:"category,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Version     int            `json:"version" yaml:"version"`
}

// PromptVersion is the immutable snapshot written alongside every save and update.
type PromptVersion struct {
	ID          string         `json:"id"`
	Version     int            `json:"version"`
	Name        string         `json:"name"`
	Content     string         `json:"content"`
	Description *string        `json:"description,omitempty"`
	IsTemplate  bool           `json:"isTemplate"`
	Variables   []string       `json:"variables"`
	Tags        []string       `json:"tags"`
	Category    *string        `json:"category,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Snapshot returns the version record for the prompt's current state.
func (p *Prompt) Snapshot() *PromptVersion {
	return &PromptVersion{
		ID:          p.ID,
		Version:     p.Version,
		Name:        p.Name,
		Content:     p.Content,
		Description: p.Description,
		IsTemplate:  p.IsTemplate,
		Variables:   p.Variables,
		Tags:        p.Tags,
		Category:    p.Category,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CreatePromptInput is the payload accepted when creating a prompt.
type CreatePromptInput struct {
	Name        string         `json:"name" yaml:"name" doc:"Display name" minLength:"1" maxLength:"100"`
	Content     string         `json:"content" yaml:"content" doc:"Prompt body; may contain {{variable}} placeholders" minLength:"1"`
	Description *string        `json:"description,omitempty" yaml:"description,omitempty" doc:"Optional description" maxLength:"500" required:"false"`
	IsTemplate  bool           `json:"isTemplate,omitempty" yaml:"isTemplate,omitempty" doc:"Whether the content is a template" required:"false"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty" doc:"Tags for categorization" required:"false"`
	Category    *string        `json:"category,omitempty" yaml:"category,omitempty" doc:"Category for organization" required:"false"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" doc:"Opaque metadata" required:"false"`
	// Variables is only honoured for non-template prompts; templates derive
	// their variables from Content.
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty" doc:"Variable names for non-template prompts" required:"false"`
}

// UpdatePromptInput is a partial update. A nil field is left unchanged;
// a non-nil pointer to an empty slice replaces the set with the empty set.
type UpdatePromptInput struct {
	Name        *string         `json:"name,omitempty" required:"false"`
	Content     *string         `json:"content,omitempty" required:"false"`
	Description *string         `json:"description,omitempty" required:"false"`
	IsTemplate  *bool           `json:"isTemplate,omitempty" required:"false"`
	Tags        *[]string       `json:"tags,omitempty" required:"false"`
	Category    *string         `json:"category,omitempty" required:"false"`
	Metadata    *map[string]any `json:"metadata,omitempty" required:"false"`
	Variables   *[]string       `json:"variables,omitempty" required:"false"`
	// ExpectedVersion rejects the update with a conflict when the stored
	// version differs.
	ExpectedVersion *int `json:"expectedVersion,omitempty" required:"false" doc:"Reject the update unless the stored version matches"`
}

const (
	DefaultListLimit = 50
)

// PromptFilter narrows ListPrompts. All set fields are combined with AND.
type PromptFilter struct {
	Category   *string
	IsTemplate *bool
	// Tags matches prompts carrying every listed tag.
	Tags   []string
	Limit  int
	Offset int
}

// EffectiveLimit returns the page size with the default applied.
func (f *PromptFilter) EffectiveLimit() int {
	if f == nil || f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// EffectiveOffset returns the offset clamped to zero.
func (f *PromptFilter) EffectiveOffset() int {
	if f == nil || f.Offset < 0 {
		return 0
	}
	return f.Offset
}

// Stats aggregates counts over every stored prompt.
type Stats struct {
	Total      int            `json:"total"`
	Templates  int            `json:"templates"`
	Regular    int            `json:"regular"`
	Categories map[string]int `json:"categories"`
	Tags       map[string]int `json:"tags"`
}

// ValidationResult reports how a set of variables lines up with a template.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// PromptListResponse is the list payload returned by the API and MCP tools.
type PromptListResponse struct {
	Prompts []Prompt `json:"prompts"`
	Count   int      `json:"count"`
}
