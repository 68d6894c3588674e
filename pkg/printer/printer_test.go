package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "a b c", TruncateString("a\n  b\tc", 10))

	got := TruncateString("a fairly long description of a prompt", 12)
	assert.True(t, strings.HasSuffix(got, "..."), got)
	assert.LessOrEqual(t, len(got), 12)

	assert.Empty(t, TruncateString("anything", 0))
}

func TestWrap(t *testing.T) {
	wrapped := Wrap("one two three four", 9)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 9)
	}
	assert.Equal(t, "unchanged", Wrap("unchanged", 0))
}

func TestTablePrinter(t *testing.T) {
	var buf bytes.Buffer
	description := "friendly opener"
	var missing *string

	tp := NewTablePrinter(&buf)
	tp.SetHeaders("ID", "Version", "Description", "Tags")
	tp.AddRow("greeting-1", 2, &description, []string{"a", "b"})
	tp.AddRow("rules-2", 1, missing, nil)
	require.NoError(t, tp.Render())

	out := buf.String()
	for _, want := range []string{"ID", "Version", "greeting-1", "friendly opener", "a, b", "rules-2"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "<nil>")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(OutputTypeJSON, false).WithWriter(&buf).PrintJSON(map[string]int{"total": 3}))
	assert.Equal(t, "{\n  \"total\": 3\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, New(OutputTypeJSON, true).WithWriter(&buf).PrintJSON(map[string]int{"total": 3}))
	assert.Equal(t, "{\"total\":3}\n", buf.String())
}
