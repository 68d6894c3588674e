package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	longName := strings.Repeat("a", 1000)
	longValue := strings.Repeat("x", 10000)
	filler := strings.Repeat("x", 1000)

	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{"simple", "Hello {{name}}, welcome to {{platform}}!", map[string]string{"name": "John", "platform": "our platform"}, "Hello John, welcome to our platform!"},
		{"empty value", "Hello {{name}}!", map[string]string{"name": ""}, "Hello !"},
		{"dotted names", "Hello {{user.name}}, your role is {{user.role}}", map[string]string{"user.name": "John", "user.role": "admin"}, "Hello John, your role is admin"},
		{"index-like names", "First item: {{items.0}}, Second item: {{items.1}}", map[string]string{"items.0": "apple", "items.1": "banana"}, "First item: apple, Second item: banana"},
		{"malformed left untouched", "Hello {{name}, welcome to {{platform}}!", map[string]string{"name": "John", "platform": "our platform"}, "Hello {{name}, welcome to our platform!"},
		{"no recursive substitution", "Hello {{name}}, your template is: {{template}}", map[string]string{"name": "John", "template": "Welcome {{user}} to {{platform}}"}, "Hello John, your template is: Welcome {{user}} to {{platform}}"},
		{"self reference", "Value: {{value}}", map[string]string{"value": "{{value}}"}, "Value: {{value}}"},
		{"long name", "Hello {{" + longName + "}}!", map[string]string{longName: "World"}, "Hello World!"},
		{"long value", "Value: {{value}}", map[string]string{"value": longValue}, "Value: " + longValue},
		{"punctuation in names", "Hello {{user-name}}, welcome to {{platform_name}}!", map[string]string{"user-name": "John", "platform_name": "our platform"}, "Hello John, welcome to our platform!"},
		{"control characters in values", "Message: {{message}}", map[string]string{"message": "Hello\nWorld\tWith\r\nSpecial"}, "Message: Hello\nWorld\tWith\r\nSpecial"},
		{"unicode", "Hello {{name}}, 你好 {{greeting}}!", map[string]string{"name": "世界", "greeting": "世界"}, "Hello 世界, 你好 世界!"},
		{"emoji", "Hello {{name}} {{emoji}}!", map[string]string{"name": "John", "emoji": "👋"}, "Hello John 👋!"},
		{"empty template", "", map[string]string{"name": "John"}, ""},
		{"only variables", "{{name}}{{age}}{{city}}", map[string]string{"name": "John", "age": "25", "city": "NYC"}, "John25NYC"},
		{"only literal text", "Hello World!", map[string]string{"name": "John"}, "Hello World!"},
		{"whitespace inside braces", "Hello {{ name }}, welcome to {{ platform }}!", map[string]string{"name": "John", "platform": "our platform"}, "Hello John, welcome to our platform!"},
		{"repeated name", "{{name}} {{name}} {{name}}", map[string]string{"name": "John"}, "John John John"},
		{"large template", filler + "{{name}}" + filler, map[string]string{"name": "John"}, filler + "John" + filler},
		{"dollar before placeholder", "Total ${{total}}", map[string]string{"total": "99.99"}, "Total $99.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SimpleEngine{}.Apply(tt.template, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_MissingVariable(t *testing.T) {
	_, err := SimpleEngine{}.Apply("Hello {{name}}, your email is {{email}}", map[string]string{"name": "John"})
	require.Error(t, err)
	assert.EqualError(t, err, "missing required variable: email")
	assert.True(t, errors.Is(err, ErrMissingVariable))

	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "email", missing.Name)

	_, err = SimpleEngine{}.Apply("Hi {{x}}", map[string]string{})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "x", missing.Name)
}

func TestApply_CaseSensitive(t *testing.T) {
	_, err := SimpleEngine{}.Apply("Hi {{Name}}", map[string]string{"name": "Bob"})
	require.ErrorIs(t, err, ErrMissingVariable)
}

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"two names", "Hello {{name}}, you are {{age}}", []string{"name", "age"}},
		{"deduplicated in first occurrence order", "{{b}} {{a}} {{b}} {{c}} {{a}}", []string{"b", "a", "c"}},
		{"trimmed", "{{ user }} and {{user}}", []string{"user"}},
		{"none", "plain text", []string{}},
		{"unmatched opening", "Hello {{name", []string{}},
		{"blank placeholder ignored", "{{   }} {{x}}", []string{"x"}},
		{"section markers kept literally", "{{#items}}{{name}}{{/items}}", []string{"#items", "name", "/items"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.content)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ExtractVariables(tt.content), "extraction must be deterministic")
		})
	}
}

func TestValidate(t *testing.T) {
	res := SimpleEngine{}.Validate("{{a}} {{b}}", map[string]string{"b": "1", "z": "2", "y": "3"})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"a"}, res.Missing)
	assert.Equal(t, []string{"y", "z"}, res.Extra)

	res = SimpleEngine{}.Validate("{{a}}", map[string]string{"a": "1", "extra": "2"})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Missing)
	assert.Equal(t, []string{"extra"}, res.Extra)
}

func TestApplyWithValidation(t *testing.T) {
	_, err := SimpleEngine{}.ApplyWithValidation("{{a}} {{b}} {{c}}", map[string]string{"b": "x"})
	require.Error(t, err)
	assert.EqualError(t, err, "missing required variables: a, c")
	assert.ErrorIs(t, err, ErrMissingVariable)

	out, err := SimpleEngine{}.ApplyWithValidation("Welcome {{user}}!", map[string]string{"user": "Ada", "unused": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Ada!", out)
}
