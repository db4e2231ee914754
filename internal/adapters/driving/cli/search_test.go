package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func bufferedCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", newSearchCommand(&app{}).Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, newTestApp(t), "search", "--index", "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_Flags(t *testing.T) {
	cmd := newSearchCommand(&app{})

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "limit flag should exist")
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "10", limit.DefValue)

	index := cmd.Flags().Lookup("index")
	require.NotNil(t, index)
	assert.Equal(t, "i", index.Shorthand)

	for _, name := range []string{"json", "filter", "max-distance"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestOutputSearchJSON_EmptyResults(t *testing.T) {
	cmd, buf := bufferedCommand()

	require.NoError(t, outputSearchJSON(cmd, &domain.SearchResponse{Results: []domain.SearchResult{}}))
	assert.Contains(t, buf.String(), `"results": []`)
	assert.NotContains(t, buf.String(), "query_degraded")
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	cmd, buf := bufferedCommand()

	outputSearchTable(cmd, &domain.SearchResponse{})
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestOutputSearchTable_WithResults(t *testing.T) {
	cmd, buf := bufferedCommand()

	outputSearchTable(cmd, &domain.SearchResponse{
		QueryDegraded: true,
		Results: []domain.SearchResult{
			{
				ID:       "file:///docs/a.md#0",
				Distance: 0.125,
				Snippet:  "first\n\n   line",
				Metadata: map[string]string{"path": "/docs/a.md"},
			},
			{ID: "file:///docs/b.md#3", Distance: 0.5},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "no oracle is configured")
	assert.Contains(t, out, "[1] file:///docs/a.md#0 (0.1250)")
	assert.Contains(t, out, "File: /docs/a.md")
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "[2] file:///docs/b.md#3 (0.5000)")
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hello world", 20, "hello world"},
		{"collapses whitespace", "a \n\t b", 20, "a b"},
		{"truncates", "abcdefghij", 5, "abcd…"},
		{"exact length", "abcde", 5, "abcde"},
		{"multibyte", "ééééé", 3, "éé…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, oneLine(tt.in, tt.n))
		})
	}
}
