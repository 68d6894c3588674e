// Package database stores versioned prompts behind a single Database interface
// with PostgreSQL, SQLite and file-system implementations.
package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentregistry-dev/promptregistry/internal/registry/template"
	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// Common database errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = validators.ErrInvalidInput
	ErrConflict     = errors.New("version conflict")
	ErrDatabase     = errors.New("database error")
	ErrNotConnected = errors.New("repository not connected")
	ErrLockTimeout  = errors.New("timed out acquiring lock")
)

// Database is the storage contract shared by every backend.
type Database interface {
	// Connect establishes the storage medium and runs migrations. Calling it
	// on a connected repository is a no-op.
	Connect(ctx context.Context) error
	// Close releases the storage medium.
	Close() error
	IsConnected() bool
	// HealthCheck performs a trivial round trip and reports false on any failure.
	HealthCheck(ctx context.Context) bool

	// SavePrompt validates in, assigns an id and writes version 1.
	SavePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error)
	// GetPromptByID returns the current prompt when version is 0, otherwise the
	// snapshot at version merged with the prompt's current tags and variables.
	GetPromptByID(ctx context.Context, id string, version int) (*models.Prompt, error)
	// ListPrompts returns prompts matching every set filter field, most recently
	// updated first.
	ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error)
	// UpdatePrompt applies a partial update and writes a new version.
	UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error)
	// DeletePrompt removes one snapshot when version > 0, otherwise the whole
	// prompt. It reports whether anything was removed.
	DeletePrompt(ctx context.Context, id string, version int) (bool, error)
	// ListPromptVersions returns version numbers in ascending order.
	ListPromptVersions(ctx context.Context, id string) ([]int, error)
}

// StorageError wraps an underlying storage failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrDatabase
}

// storageErr wraps err in a StorageError unless it is already one of the
// typed outcomes callers branch on.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotConnected), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and collapses every run of characters outside
// [a-z0-9] into a single hyphen.
func Slugify(name string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// MaxPromptIDLength bounds generated ids so they fit in a single path
// component of the file store.
const MaxPromptIDLength = 100

// idSuffixLength is the number of random hex characters after the slug.
const idSuffixLength = 8

// NewPromptID derives a fresh identifier from name. Two calls with the same
// name return different ids, and ids never exceed MaxPromptIDLength.
func NewPromptID(name string) string {
	slug := Slugify(name)
	if maxSlug := MaxPromptIDLength - idSuffixLength - 1; len(slug) > maxSlug {
		slug = strings.TrimRight(slug[:maxSlug], "-")
	}
	if slug == "" {
		slug = "prompt"
	}
	return slug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
}

// checkVersionArg rejects negative version numbers. Zero selects the whole
// prompt (or its current version) and is always allowed.
func checkVersionArg(version int) error {
	if version < 0 {
		return fmt.Errorf("%w: version must not be negative (got %d)", ErrInvalidInput, version)
	}
	return nil
}

// now is the timestamp source for every backend. Microsecond precision is the
// finest resolution all three media round-trip.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newPrompt builds the version 1 record for an already normalized input.
func newPrompt(in *models.CreatePromptInput) *models.Prompt {
	ts := now()
	p := &models.Prompt{
		ID:          NewPromptID(in.Name),
		Name:        in.Name,
		Content:     in.Content,
		Description: in.Description,
		IsTemplate:  in.IsTemplate,
		Tags:        nonNil(in.Tags),
		Category:    in.Category,
		Metadata:    in.Metadata,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Version:     1,
	}
	if in.IsTemplate {
		p.Variables = template.ExtractVariables(in.Content)
	} else {
		p.Variables = nonNil(in.Variables)
	}
	return p
}

// applyPatch returns the next version of current with patch applied. patch
// must already be normalized.
func applyPatch(current *models.Prompt, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
		return nil, fmt.Errorf("%w: prompt %s is at version %d, expected %d", ErrConflict, current.ID, current.Version, *patch.ExpectedVersion)
	}

	next := *current
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if patch.Description != nil {
		next.Description = patch.Description
	}
	if patch.IsTemplate != nil {
		next.IsTemplate = *patch.IsTemplate
	}
	if patch.Category != nil {
		next.Category = patch.Category
	}
	if patch.Metadata != nil {
		next.Metadata = *patch.Metadata
	}
	if patch.Tags != nil {
		next.Tags = nonNil(*patch.Tags)
	}
	next.Variables = resolveVariables(current, &next, patch)

	next.UpdatedAt = now()
	if next.UpdatedAt.Before(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt
	}
	next.Version = current.Version + 1
	return &next, nil
}

// resolveVariables implements the variable rule for updates: templates derive
// variables from content, a template that stops being one loses them, and a
// plain prompt keeps its list unless the patch supplies a new one.
func resolveVariables(current, next *models.Prompt, patch *models.UpdatePromptInput) []string {
	if next.IsTemplate {
		if next.Content != current.Content || !current.IsTemplate {
			return template.ExtractVariables(next.Content)
		}
		return nonNil(current.Variables)
	}
	if patch.Variables != nil {
		return nonNil(*patch.Variables)
	}
	if current.IsTemplate {
		return []string{}
	}
	return nonNil(current.Variables)
}

// mergeCurrentAssociations overlays the live prompt's tags and variables on a
// historical snapshot.
func mergeCurrentAssociations(snapshot *models.Prompt, tags, variables []string) {
	snapshot.Tags = nonNil(tags)
	snapshot.Variables = nonNil(variables)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

// hasAllTags reports whether have contains every entry of want.
func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// distinct returns s without duplicates, preserving order.
func distinct(s []string) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
