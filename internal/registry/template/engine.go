// Package template implements {{variable}} placeholder handling for prompt content.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// ErrMissingVariable is matched by both MissingVariableError and MissingVariablesError.
var ErrMissingVariable = errors.New("missing template variable")

// placeholderPattern matches {{ ... }} where the enclosed text holds no closing brace.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// MissingVariableError is returned by Apply for the first unresolved placeholder.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required variable: %s", e.Name)
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}

// MissingVariablesError is returned by ApplyWithValidation and lists every unresolved name.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing required variables: %s", strings.Join(e.Names, ", "))
}

func (e *MissingVariablesError) Is(target error) bool {
	return target == ErrMissingVariable
}

// Engine renders prompt templates.
type Engine interface {
	ExtractVariables(content string) []string
	Apply(content string, variables map[string]string) (string, error)
	Validate(content string, provided map[string]string) models.ValidationResult
	ApplyWithValidation(content string, variables map[string]string) (string, error)
}

// SimpleEngine is the default Engine.
type SimpleEngine struct{}

// Default is the engine used when callers do not supply one.
var Default Engine = SimpleEngine{}

// ExtractVariables returns the distinct placeholder names in content, in
// order of first occurrence.
func (SimpleEngine) ExtractVariables(content string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(content, -1)
	variables := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		variables = append(variables, name)
	}
	return variables
}

// Apply substitutes every placeholder in a single pass. Substituted values are
// not scanned again.
func (SimpleEngine) Apply(content string, variables map[string]string) (string, error) {
	var missing *MissingVariableError
	out := placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		if missing != nil {
			return match
		}
		name := strings.TrimSpace(match[2 : len(match)-2])
		if name == "" {
			return match
		}
		value, ok := variables[name]
		if !ok {
			missing = &MissingVariableError{Name: name}
			return match
		}
		return value
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Validate reports required names absent from provided and provided names the
// content does not use. Extra names do not make the result invalid.
func (e SimpleEngine) Validate(content string, provided map[string]string) models.ValidationResult {
	required := e.ExtractVariables(content)

	missing := []string{}
	for _, name := range required {
		if _, ok := provided[name]; !ok {
			missing = append(missing, name)
		}
	}

	extra := []string{}
	for name := range provided {
		if !slices.Contains(required, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)

	return models.ValidationResult{
		Valid:   len(missing) == 0,
		Missing: missing,
		Extra:   extra,
	}
}

// ApplyWithValidation fails with every missing name before substituting anything.
func (e SimpleEngine) ApplyWithValidation(content string, variables map[string]string) (string, error) {
	result := e.Validate(content, variables)
	if !result.Valid {
		return "", &MissingVariablesError{Names: result.Missing}
	}
	return e.Apply(content, variables)
}

// ExtractVariables uses the Default engine.
func ExtractVariables(content string) []string {
	return Default.ExtractVariables(content)
}
