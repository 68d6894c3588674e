package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/internal/registry/template"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

func newTestService(t *testing.T) RegistryService {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Storage:    database.StorageFile,
		PromptsDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRegistryService(db, WithMetrics(telemetry.Noop()))
}

func ptr[T any](v T) *T { return &v }

func create(t *testing.T, svc RegistryService, in models.CreatePromptInput) *models.Prompt {
	t.Helper()
	p, err := svc.CreatePrompt(context.Background(), &in)
	require.NoError(t, err)
	return p
}

func TestGetPrompt_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetPrompt(context.Background(), "missing-1234", 0)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "prompt", nf.Resource)
	assert.Equal(t, "missing-1234", nf.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Contains(t, err.Error(), "not found")

	p := create(t, svc, models.CreatePromptInput{Name: "x", Content: "y"})
	_, err = svc.GetPrompt(context.Background(), p.ID, 7)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 7, nf.Version)
}

func TestUpdatePrompt_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.UpdatePrompt(context.Background(), "nope", &models.UpdatePromptInput{Content: ptr("x")})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestApplyTemplate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	tpl := create(t, svc, models.CreatePromptInput{Name: "Greeting", Content: "Welcome {{user}} to {{ place }}!", IsTemplate: true})
	plain := create(t, svc, models.CreatePromptInput{Name: "Plain", Content: "Hi {{user}}"})

	text, err := svc.ApplyTemplate(ctx, tpl.ID, map[string]string{"user": "Ada", "place": "Paris", "unused": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Ada to Paris!", text)

	_, err = svc.ApplyTemplate(ctx, tpl.ID, map[string]string{"user": "Ada"})
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrMissingVariable)
	assert.Contains(t, err.Error(), "place")

	_, err = svc.ApplyTemplate(ctx, plain.ID, map[string]string{"user": "Ada"})
	assert.ErrorIs(t, err, ErrNotATemplate)
	assert.Contains(t, err.Error(), plain.ID)

	_, err = svc.ApplyTemplate(ctx, "ghost", nil)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSearchPrompts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	byName := create(t, svc, models.CreatePromptInput{Name: "Code Review", Content: "Review this"})
	byDesc := create(t, svc, models.CreatePromptInput{Name: "Other", Content: "x", Description: ptr("helps with CODE")})
	byTag := create(t, svc, models.CreatePromptInput{Name: "Tagged", Content: "y", Tags: []string{"codegen"}})
	create(t, svc, models.CreatePromptInput{Name: "Unrelated", Content: "z"})
	folded := create(t, svc, models.CreatePromptInput{Name: "Straße", Content: "w"})

	got, err := svc.SearchPrompts(ctx, "code")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{byName.ID, byDesc.ID, byTag.ID}, ids(got))

	got, err = svc.SearchPrompts(ctx, "STRASSE")
	require.NoError(t, err)
	assert.Equal(t, []string{folded.ID}, ids(got))

	got, err = svc.SearchPrompts(ctx, "no-such-text")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = svc.SearchPrompts(ctx, "   ")
	assert.ErrorIs(t, err, database.ErrInvalidInput)
}

func TestGetStats_ScansBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const n = scanBatchSize + 5
	for i := range n {
		in := models.CreatePromptInput{Name: fmt.Sprintf("p%d", i), Content: "c", Tags: []string{"all"}}
		if i%2 == 0 {
			in.IsTemplate = true
			in.Content = "{{v}}"
			in.Category = ptr("even")
			in.Tags = append(in.Tags, "even")
		}
		create(t, svc, in)
	}

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, stats.Total)
	assert.Equal(t, 53, stats.Templates)
	assert.Equal(t, 52, stats.Regular)
	assert.Equal(t, map[string]int{"even": 53}, stats.Categories)
	assert.Equal(t, map[string]int{"all": n, "even": 53}, stats.Tags)
}

func TestGetStats_Empty(t *testing.T) {
	stats, err := newTestService(t).GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.NotNil(t, stats.Categories)
	assert.NotNil(t, stats.Tags)
}

func TestTemplateToPlainScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	p := create(t, svc, models.CreatePromptInput{Name: "Welcome", Content: "Welcome {{user}}!", IsTemplate: true})
	assert.Equal(t, []string{"user"}, p.Variables)

	updated, err := svc.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{IsTemplate: ptr(false)})
	require.NoError(t, err)
	assert.Empty(t, updated.Variables)
	assert.Equal(t, 2, updated.Version)

	versions, err := svc.ListPromptVersions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	deleted, err := svc.DeletePrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = svc.DeletePrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestScanAll_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewRegistryService(&failingListDB{Database: nil, err: boom})

	_, err := svc.GetStats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "offset 0")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, telemetry.OutcomeOK, Outcome(nil))
	assert.Equal(t, telemetry.OutcomeNotFound, Outcome(&NotFoundError{Resource: "prompt", ID: "x"}))
	assert.Equal(t, telemetry.OutcomeConflict, Outcome(fmt.Errorf("wrap: %w", database.ErrConflict)))
	assert.Equal(t, telemetry.OutcomeInvalid, Outcome(fmt.Errorf("p: %w", ErrNotATemplate)))
	assert.Equal(t, telemetry.OutcomeInvalid, Outcome(&template.MissingVariableError{Name: "x"}))
	assert.Equal(t, telemetry.OutcomeError, Outcome(errors.New("boom")))
}

type failingListDB struct {
	database.Database
	err error
}

func (f *failingListDB) ListPrompts(context.Context, *models.PromptFilter) ([]*models.Prompt, error) {
	return nil, f.err
}

func ids(prompts []*models.Prompt) []string {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, p.ID)
	}
	return out
}
