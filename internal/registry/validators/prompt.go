// Package validators checks and normalizes prompt inputs before they reach storage.
package validators

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

// ErrInvalidInput is matched by every ValidationErrors value.
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every field error found in one input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// NormalizeCreate validates in and returns a trimmed copy with duplicate tags
// removed. The input is not modified.
func NormalizeCreate(in *models.CreatePromptInput) (*models.CreatePromptInput, error) {
	if in == nil {
		return nil, ValidationErrors{{Field: "body", Message: "is required"}}
	}

	var errs ValidationErrors
	out := *in

	out.Name = strings.TrimSpace(in.Name)
	checkName(&errs, out.Name)

	out.Content = strings.TrimSpace(in.Content)
	if out.Content == "" {
		errs.add("content", "must not be empty")
	}

	out.Description = trimOptional(in.Description)
	checkDescription(&errs, out.Description)

	out.Category = trimOptional(in.Category)

	tags, ok := normalizeTags(in.Tags)
	if !ok {
		errs.add("tags", "must not contain empty values")
	}
	out.Tags = tags

	out.Variables = normalizeVariables(in.Variables)

	if err := errs.err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// NormalizeUpdate validates the fields present in in and returns a trimmed copy.
func NormalizeUpdate(in *models.UpdatePromptInput) (*models.UpdatePromptInput, error) {
	if in == nil {
		return &models.UpdatePromptInput{}, nil
	}

	var errs ValidationErrors
	out := *in

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		checkName(&errs, name)
		out.Name = &name
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			errs.add("content", "must not be empty")
		}
		out.Content = &content
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		out.Description = &desc
		checkDescription(&errs, out.Description)
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		out.Category = &category
	}
	if in.Tags != nil {
		tags, ok := normalizeTags(*in.Tags)
		if !ok {
			errs.add("tags", "must not contain empty values")
		}
		out.Tags = &tags
	}
	if in.Variables != nil {
		vars := normalizeVariables(*in.Variables)
		out.Variables = &vars
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion < 1 {
		errs.add("expectedVersion", "must be at least 1")
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateFilter rejects negative paging values.
func ValidateFilter(filter *models.PromptFilter) error {
	if filter == nil {
		return nil
	}
	var errs ValidationErrors
	if filter.Limit < 0 {
		errs.add("limit", "must not be negative")
	}
	if filter.Offset < 0 {
		errs.add("offset", "must not be negative")
	}
	for _, tag := range filter.Tags {
		if strings.TrimSpace(tag) == "" {
			errs.add("tags", "must not contain empty values")
			break
		}
	}
	return errs.err()
}

func checkName(errs *ValidationErrors, name string) {
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		errs.add("name", "must not be empty")
	case n > MaxNameLength:
		errs.add("name", "must be at most %d characters (got %d)", MaxNameLength, n)
	}
}

func checkDescription(errs *ValidationErrors, desc *string) {
	if desc == nil {
		return
	}
	if n := utf8.RuneCountInString(*desc); n > MaxDescriptionLength {
		errs.add("description", "must be at most %d characters (got %d)", MaxDescriptionLength, n)
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// normalizeTags trims and deduplicates tags, keeping first-occurrence order.
// It reports false when any tag is blank.
func normalizeTags(tags []string) ([]string, bool) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	ok := true
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			ok = false
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, ok
}

func normalizeVariables(vars []string) []string {
	out, _ := normalizeTags(vars)
	return out
}
