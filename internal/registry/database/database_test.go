package database

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Code Review Helper":   "code-review-helper",
		"  --Hello,  World!--": "hello-world",
		"ÜnÏcode ñame":         "n-code-ame",
		"snake_case_name":      "snake-case-name",
		"!!!":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNewPromptID(t *testing.T) {
	a := NewPromptID("My Prompt")
	b := NewPromptID("My Prompt")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "my-prompt-"))
	assert.Regexp(t, `^my-prompt-[0-9a-f]{8}$`, a)

	assert.Regexp(t, `^prompt-[0-9a-f]{8}$`, NewPromptID("???"))

	long := NewPromptID(strings.Repeat("a", 100))
	assert.Len(t, long, MaxPromptIDLength)
	assert.Regexp(t, `^a+-[0-9a-f]{8}$`, long)

	// a cut that lands on a hyphen must not leave a double hyphen
	assert.Regexp(t, `^a+-[0-9a-f]{8}$`, NewPromptID(strings.Repeat("a", 90)+" b"))
}

func TestApplyPatch_UpdatedAtNeverGoesBackwards(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	current := &models.Prompt{ID: "x", Name: "x", Content: "c", Version: 3, CreatedAt: future, UpdatedAt: future}

	next, err := applyPatch(current, &models.UpdatePromptInput{})
	require.NoError(t, err)
	assert.Equal(t, future, next.UpdatedAt)
	assert.Equal(t, 4, next.Version)
}

func TestResolveVariables(t *testing.T) {
	tpl := &models.Prompt{Content: "{{a}}", IsTemplate: true, Variables: []string{"a"}}
	plain := &models.Prompt{Content: "{{a}}", Variables: []string{"keep"}}
	supplied := []string{"s"}
	tru, fls := true, false
	newContent := "{{b}}"

	tests := []struct {
		name    string
		current *models.Prompt
		patch   *models.UpdatePromptInput
		want    []string
	}{
		{"template unchanged", tpl, &models.UpdatePromptInput{}, []string{"a"}},
		{"template content changed", tpl, &models.UpdatePromptInput{Content: &newContent}, []string{"b"}},
		{"template to plain", tpl, &models.UpdatePromptInput{IsTemplate: &fls}, []string{}},
		{"template to plain with supplied list", tpl, &models.UpdatePromptInput{IsTemplate: &fls, Variables: &supplied}, []string{"s"}},
		{"plain becomes template", plain, &models.UpdatePromptInput{IsTemplate: &tru}, []string{"a"}},
		{"plain keeps its list", plain, &models.UpdatePromptInput{}, []string{"keep"}},
		{"plain with supplied list", plain, &models.UpdatePromptInput{Variables: &supplied}, []string{"s"}},
		{"template ignores supplied list", tpl, &models.UpdatePromptInput{Variables: &supplied}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := applyPatch(tt.current, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Variables)
		})
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := map[string]string{
		"plain-id-1234":    "plain-id-1234",
		"../../etc/passwd": "etc-passwd",
		"/leading":         "leading",
		`a\b`:              "a-b",
		"bad<>:\"|?*chars": "badchars",
		"..":               "_",
		"":                 "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizePathComponent(in), in)
	}
	assert.Len(t, sanitizePathComponent(strings.Repeat("x", 300)), maxPathComponent)
}

func TestStorageError(t *testing.T) {
	err := storageErr("read", assert.AnError)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "read")

	assert.Same(t, ErrNotFound, storageErr("read", ErrNotFound))
	assert.Nil(t, storageErr("read", nil))
}
