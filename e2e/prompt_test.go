//go:build e2e

package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

func TestPromptTemplateLifecycle(t *testing.T) {
	dir := t.TempDir()
	name := UniqueNameWithPrefix("e2e-greeting")

	file := WriteFile(t, dir, "greeting.yaml", `name: `+name+`
description: Greets a user
category: e2e
tags: [greeting, e2e]
isTemplate: true
content: "Hello {{user}}, welcome to {{place}}!"
`)

	t.Run("add", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "add", file, "-o", "json")
		RequireSuccess(t, result)
	})

	var created models.Prompt
	t.Run("list", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "list", "--category", "e2e", "--template", "-o", "json")
		RequireSuccess(t, result)
		for _, p := range DecodeJSON[[]models.Prompt](t, result) {
			if p.Name == name {
				created = p
			}
		}
		if created.ID == "" {
			t.Fatalf("prompt %q missing from list output", name)
		}
		if got := strings.Join(created.Variables, ","); got != "user,place" {
			t.Fatalf("expected variables user,place, got %s", got)
		}
	})
	if created.ID == "" {
		t.FailNow()
	}

	t.Run("apply", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "apply", created.ID, "--var", "user=Ada", "--var", "place=Lovelace Hall")
		RequireSuccess(t, result)
		RequireOutputContains(t, result, "Hello Ada, welcome to Lovelace Hall!")
	})

	t.Run("apply missing variable", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "apply", created.ID, "--var", "user=Ada")
		RequireFailure(t, result)
		RequireOutputContains(t, result, "place")
	})

	t.Run("update bumps version", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "update", created.ID,
			"--content", "Hi {{user}}", "--expected-version", "1", "-o", "json")
		RequireSuccess(t, result)
		updated := DecodeJSON[models.Prompt](t, result)
		if updated.Version != 2 {
			t.Fatalf("expected version 2, got %d", updated.Version)
		}
	})

	t.Run("stale update rejected", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "update", created.ID, "--content", "late", "--expected-version", "1")
		RequireFailure(t, result)
	})

	t.Run("show old version", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "show", created.ID, "--version", "1", "-o", "json")
		RequireSuccess(t, result)
		old := DecodeJSON[models.Prompt](t, result)
		if !strings.Contains(old.Content, "{{place}}") {
			t.Fatalf("expected version 1 content, got %q", old.Content)
		}
	})

	t.Run("search", func(t *testing.T) {
		result := RunPrctl(t, dir, "prompt", "search", name, "-o", "json")
		RequireSuccess(t, result)
		if hits := DecodeJSON[[]models.Prompt](t, result); len(hits) != 1 {
			t.Fatalf("expected one search hit, got %d", len(hits))
		}
	})

	t.Run("delete", func(t *testing.T) {
		RequireSuccess(t, RunPrctl(t, dir, "prompt", "delete", created.ID, "--yes"))
		if resp := RegistryGet(t, "/prompts/"+created.ID); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
		}
		RequireFailure(t, RunPrctl(t, dir, "prompt", "delete", created.ID, "--yes"))
	})
}

func TestStatus(t *testing.T) {
	result := RunPrctl(t, "", "status")
	RequireSuccess(t, result)
	RequireOutputContains(t, result, "API")
}
