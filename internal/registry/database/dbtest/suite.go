// Package dbtest holds a behavioural suite every database.Database
// implementation must pass.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/database"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// Factory returns a connected, empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) database.Database

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

// Run executes the suite against repositories produced by newDB.
func Run(t *testing.T, newDB Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db database.Database)
	}{
		{"SaveAssignsFirstVersion", testSaveAssignsFirstVersion},
		{"SaveExtractsTemplateVariables", testSaveExtractsTemplateVariables},
		{"SaveRejectsInvalidInput", testSaveRejectsInvalidInput},
		{"SaveLongNamesKeepDistinctIDs", testSaveLongNamesKeepDistinctIDs},
		{"GetUnknownID", testGetUnknownID},
		{"UpdateBumpsVersion", testUpdateBumpsVersion},
		{"UpdateVersionRoundTrip", testUpdateVersionRoundTrip},
		{"UpdateTemplateToPlainClearsVariables", testUpdateTemplateToPlainClearsVariables},
		{"UpdateContentReextractsVariables", testUpdateContentReextractsVariables},
		{"UpdateUnknownID", testUpdateUnknownID},
		{"UpdateExpectedVersionConflict", testUpdateExpectedVersionConflict},
		{"UpdateReplacesTags", testUpdateReplacesTags},
		{"HistoricalVersionUsesCurrentTags", testHistoricalVersionUsesCurrentTags},
		{"ListTagIntersection", testListTagIntersection},
		{"ListFiltersAndPaging", testListFiltersAndPaging},
		{"ListOrderedByUpdatedAt", testListOrderedByUpdatedAt},
		{"DeleteUnknownID", testDeleteUnknownID},
		{"DeleteWholePrompt", testDeleteWholePrompt},
		{"DeleteHistoricalVersion", testDeleteHistoricalVersion},
		{"NegativeVersionRejected", testNegativeVersionRejected},
		{"ListVersionsUnknownID", testListVersionsUnknownID},
		{"ConcurrentSavesSameName", testConcurrentSavesSameName},
		{"ReadIsIdempotent", testReadIsIdempotent},
		{"HealthCheck", testHealthCheck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newDB(t))
		})
	}
}

func save(t *testing.T, db database.Database, in *models.CreatePromptInput) *models.Prompt {
	t.Helper()
	p, err := db.SavePrompt(context.Background(), in)
	require.NoError(t, err)
	return p
}

func testSaveAssignsFirstVersion(t *testing.T, db database.Database) {
	p := save(t, db, &models.CreatePromptInput{
		Name:        "  Code Review Helper ",
		Content:     "Review this code carefully.",
		Description: strPtr("reviews code"),
		Tags:        []string{"review", "code", "review"},
		Category:    strPtr("dev"),
		Metadata:    map[string]any{"owner": "platform"},
	})

	assert.Equal(t, 1, p.Version)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.True(t, strings.HasPrefix(p.ID, "code-review-helper-"), p.ID)
	assert.Len(t, p.ID, len("code-review-helper-")+8)
	assert.Equal(t, "Code Review Helper", p.Name)
	assert.Equal(t, []string{"review", "code"}, p.Tags)
	assert.Equal(t, []string{}, p.Variables)
	require.NotNil(t, p.Category)
	assert.Equal(t, "dev", *p.Category)
	assert.Equal(t, "platform", p.Metadata["owner"])

	got, err := db.GetPromptByID(context.Background(), p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func testSaveExtractsTemplateVariables(t *testing.T, db database.Database) {
	p := save(t, db, &models.CreatePromptInput{
		Name:       "Welcome",
		Content:    "Welcome {{user}} to {{ platform }}, {{user}}!",
		IsTemplate: true,
		Variables:  []string{"ignored"},
	})
	assert.Equal(t, []string{"user", "platform"}, p.Variables)

	plain := save(t, db, &models.CreatePromptInput{
		Name:      "Plain",
		Content:   "No placeholders {{here}}",
		Variables: []string{"a", "b"},
	})
	assert.Equal(t, []string{"a", "b"}, plain.Variables)
}

func testSaveRejectsInvalidInput(t *testing.T, db database.Database) {
	_, err := db.SavePrompt(context.Background(), &models.CreatePromptInput{Name: " ", Content: "x"})
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	_, err = db.SavePrompt(context.Background(), &models.CreatePromptInput{Name: strings.Repeat("n", 101), Content: "x"})
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	list, err := db.ListPrompts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testSaveLongNamesKeepDistinctIDs(t *testing.T, db database.Database) {
	ctx := context.Background()
	name := strings.Repeat("a", 100)
	first := save(t, db, &models.CreatePromptInput{Name: name, Content: "first"})
	second := save(t, db, &models.CreatePromptInput{Name: name, Content: "second"})

	require.NotEqual(t, first.ID, second.ID)
	assert.LessOrEqual(t, len(first.ID), database.MaxPromptIDLength)
	assert.LessOrEqual(t, len(second.ID), database.MaxPromptIDLength)

	got, err := db.GetPromptByID(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "first", got.Content)

	got, err = db.GetPromptByID(ctx, second.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
}

func testGetUnknownID(t *testing.T, db database.Database) {
	_, err := db.GetPromptByID(context.Background(), "does-not-exist", 0)
	assert.ErrorIs(t, err, database.ErrNotFound)

	p := save(t, db, &models.CreatePromptInput{Name: "x", Content: "y"})
	_, err = db.GetPromptByID(context.Background(), p.ID, 7)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testUpdateBumpsVersion(t *testing.T, db database.Database) {
	ctx := context.Background()
	prev := save(t, db, &models.CreatePromptInput{Name: "Counter", Content: "v1", Tags: []string{"t"}})

	for i := 2; i <= 4; i++ {
		next, err := db.UpdatePrompt(ctx, prev.ID, &models.UpdatePromptInput{Content: strPtr(fmt.Sprintf("v%d", i))})
		require.NoError(t, err)
		assert.Equal(t, prev.Version+1, next.Version)
		assert.False(t, next.UpdatedAt.Before(prev.UpdatedAt))
		assert.Equal(t, prev.CreatedAt, next.CreatedAt)
		assert.Equal(t, prev.Name, next.Name, "absent fields keep their value")
		assert.Equal(t, []string{"t"}, next.Tags)
		prev = next
	}

	versions, err := db.ListPromptVersions(ctx, prev.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, versions)
}

func testUpdateVersionRoundTrip(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Round trip", Content: "first"})
	updated, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{
		Content:     strPtr("second"),
		Description: strPtr("now described"),
	})
	require.NoError(t, err)

	v2, err := db.GetPromptByID(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", v2.Content)
	assert.Equal(t, "now described", *v2.Description)
	assert.Equal(t, updated.UpdatedAt, v2.UpdatedAt)

	v1, err := db.GetPromptByID(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", v1.Content)
	assert.Equal(t, 1, v1.Version)
}

func testUpdateTemplateToPlainClearsVariables(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Greeting", Content: "Welcome {{user}}!", IsTemplate: true})
	require.True(t, p.IsTemplate)
	require.Equal(t, []string{"user"}, p.Variables)

	updated, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{IsTemplate: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsTemplate)
	assert.Equal(t, []string{}, updated.Variables)
	assert.Equal(t, "Welcome {{user}}!", updated.Content)

	again, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{IsTemplate: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, again.Variables)
}

func testUpdateContentReextractsVariables(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Tpl", Content: "Hi {{a}}", IsTemplate: true})

	renamed, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Name: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, renamed.Variables)

	changed, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{
		Content:   strPtr("Hi {{b}} and {{c}}"),
		Variables: &[]string{"ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, changed.Variables)
}

func testUpdateUnknownID(t *testing.T, db database.Database) {
	_, err := db.UpdatePrompt(context.Background(), "missing-12345678", &models.UpdatePromptInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testUpdateExpectedVersionConflict(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Guarded", Content: "original"})

	_, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("stale"), ExpectedVersion: intPtr(5)})
	require.ErrorIs(t, err, database.ErrConflict)

	got, err := db.GetPromptByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Content)
	assert.Equal(t, 1, got.Version)

	updated, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("fresh"), ExpectedVersion: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func testUpdateReplacesTags(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Tagged", Content: "x", Tags: []string{"a", "b"}})

	updated, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Tags: &[]string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, updated.Tags)

	cleared, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Tags: &[]string{}})
	require.NoError(t, err)
	assert.Equal(t, []string{}, cleared.Tags)
}

func testHistoricalVersionUsesCurrentTags(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "History", Content: "v1", Tags: []string{"old"}})
	_, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("v2"), Tags: &[]string{"new"}})
	require.NoError(t, err)

	v1, err := db.GetPromptByID(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Content)
	assert.Equal(t, []string{"new"}, v1.Tags)
}

func testListTagIntersection(t *testing.T, db database.Database) {
	ctx := context.Background()
	save(t, db, &models.CreatePromptInput{Name: "only a", Content: "x", Tags: []string{"a"}})
	save(t, db, &models.CreatePromptInput{Name: "only b", Content: "x", Tags: []string{"b"}})
	both := save(t, db, &models.CreatePromptInput{Name: "a and b", Content: "x", Tags: []string{"a", "b"}})

	list, err := db.ListPrompts(ctx, &models.PromptFilter{Tags: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, both.ID, list[0].ID)

	list, err = db.ListPrompts(ctx, &models.PromptFilter{Tags: []string{"a", "a"}})
	require.NoError(t, err)
	assert.Len(t, list, 2, "duplicate requested tags count once")

	list, err = db.ListPrompts(ctx, &models.PromptFilter{Tags: []string{"zzz"}})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testListFiltersAndPaging(t *testing.T, db database.Database) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		save(t, db, &models.CreatePromptInput{Name: fmt.Sprintf("dev %d", i), Content: "x", Category: strPtr("dev")})
	}
	save(t, db, &models.CreatePromptInput{Name: "ops template", Content: "{{host}}", IsTemplate: true, Category: strPtr("ops")})

	all, err := db.ListPrompts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	dev, err := db.ListPrompts(ctx, &models.PromptFilter{Category: strPtr("dev")})
	require.NoError(t, err)
	assert.Len(t, dev, 5)

	templates, err := db.ListPrompts(ctx, &models.PromptFilter{IsTemplate: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, []string{"host"}, templates[0].Variables)

	none, err := db.ListPrompts(ctx, &models.PromptFilter{Category: strPtr("dev"), IsTemplate: boolPtr(true)})
	require.NoError(t, err)
	assert.Empty(t, none)

	page1, err := db.ListPrompts(ctx, &models.PromptFilter{Category: strPtr("dev"), Limit: 2})
	require.NoError(t, err)
	page2, err := db.ListPrompts(ctx, &models.PromptFilter{Category: strPtr("dev"), Limit: 2, Offset: 2})
	require.NoError(t, err)
	page3, err := db.ListPrompts(ctx, &models.PromptFilter{Category: strPtr("dev"), Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	require.Len(t, page3, 1)

	seen := map[string]bool{}
	for _, p := range append(append(page1, page2...), page3...) {
		assert.False(t, seen[p.ID], "pages must not overlap")
		seen[p.ID] = true
	}

	past, err := db.ListPrompts(ctx, &models.PromptFilter{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = db.ListPrompts(ctx, &models.PromptFilter{Offset: -1})
	assert.ErrorIs(t, err, database.ErrInvalidInput)
}

func testListOrderedByUpdatedAt(t *testing.T, db database.Database) {
	ctx := context.Background()
	first := save(t, db, &models.CreatePromptInput{Name: "first", Content: "x"})
	time.Sleep(2 * time.Millisecond)
	second := save(t, db, &models.CreatePromptInput{Name: "second", Content: "x"})
	time.Sleep(2 * time.Millisecond)
	third := save(t, db, &models.CreatePromptInput{Name: "third", Content: "x"})

	list, err := db.ListPrompts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	time.Sleep(2 * time.Millisecond)
	_, err = db.UpdatePrompt(ctx, first.ID, &models.UpdatePromptInput{Content: strPtr("touched")})
	require.NoError(t, err)

	list, err = db.ListPrompts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "touched", list[0].Content)
}

func testDeleteUnknownID(t *testing.T, db database.Database) {
	deleted, err := db.DeletePrompt(context.Background(), "never-existed", 0)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = db.DeletePrompt(context.Background(), "never-existed", 3)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testDeleteWholePrompt(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Doomed", Content: "x", Tags: []string{"gone"}})
	_, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("y")})
	require.NoError(t, err)

	deleted, err := db.DeletePrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.GetPromptByID(ctx, p.ID, 0)
	assert.ErrorIs(t, err, database.ErrNotFound)

	versions, err := db.ListPromptVersions(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	list, err := db.ListPrompts(ctx, &models.PromptFilter{Tags: []string{"gone"}})
	require.NoError(t, err)
	assert.Empty(t, list)

	deleted, err = db.DeletePrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testDeleteHistoricalVersion(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Versions", Content: "v1"})
	_, err := db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("v2")})
	require.NoError(t, err)
	_, err = db.UpdatePrompt(ctx, p.ID, &models.UpdatePromptInput{Content: strPtr("v3")})
	require.NoError(t, err)

	deleted, err := db.DeletePrompt(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	versions, err := db.ListPromptVersions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, versions)

	_, err = db.GetPromptByID(ctx, p.ID, 2)
	assert.ErrorIs(t, err, database.ErrNotFound)

	current, err := db.GetPromptByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Version)

	deleted, err = db.DeletePrompt(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testNegativeVersionRejected(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Kept", Content: "x", Tags: []string{"kept"}})

	deleted, err := db.DeletePrompt(ctx, p.ID, -1)
	assert.ErrorIs(t, err, database.ErrInvalidInput)
	assert.False(t, deleted)

	_, err = db.GetPromptByID(ctx, p.ID, -1)
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	versions, err := db.ListPromptVersions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)

	got, err := db.GetPromptByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, got.Tags)
}

func testListVersionsUnknownID(t *testing.T, db database.Database) {
	versions, err := db.ListPromptVersions(context.Background(), "unknown-id")
	require.NoError(t, err)
	assert.NotNil(t, versions)
	assert.Empty(t, versions)
}

func testConcurrentSavesSameName(t *testing.T, db database.Database) {
	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := db.SavePrompt(context.Background(), &models.CreatePromptInput{
				Name:    "Same Name",
				Content: "x",
				Tags:    []string{"shared"},
			})
			errs[i] = err
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	unique := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		unique[ids[i]] = true
	}
	assert.Len(t, unique, n)

	list, err := db.ListPrompts(context.Background(), &models.PromptFilter{Tags: []string{"shared"}})
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func testReadIsIdempotent(t *testing.T, db database.Database) {
	ctx := context.Background()
	p := save(t, db, &models.CreatePromptInput{Name: "Stable", Content: "{{x}}", IsTemplate: true, Tags: []string{"a"}})

	a, err := db.GetPromptByID(ctx, p.ID, 0)
	require.NoError(t, err)
	b, err := db.GetPromptByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func testHealthCheck(t *testing.T, db database.Database) {
	assert.True(t, db.IsConnected())
	assert.True(t, db.HealthCheck(context.Background()))

	require.NoError(t, db.Close())
	assert.False(t, db.IsConnected())
	assert.False(t, db.HealthCheck(context.Background()))

	_, err := db.GetPromptByID(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.ErrorIs(t, err, database.ErrDatabase)
}
