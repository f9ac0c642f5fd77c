package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"TABLE", FormatTable, false},
		{"markdown", FormatMarkdown, false},
		{"yaml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_NoColourOutsideTerminal(t *testing.T) {
	buf := new(bytes.Buffer)
	r := NewRenderer(buf, FormatTable)

	require.NoError(t, r.QueryResponse(sampleResponse()))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderer_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	r := NewRenderer(buf, FormatTable)

	require.NoError(t, r.QueryResponse(&domain.QueryResponse{Query: "nothing", Mode: domain.QueryModeSmart}))
	assert.Contains(t, buf.String(), "No results.")
}

func TestRenderer_MarkdownEscapesPipes(t *testing.T) {
	buf := new(bytes.Buffer)
	r := NewRenderer(buf, FormatMarkdown)

	r.markdownTable([]string{"A"}, [][]string{{"x | y"}})
	assert.Contains(t, buf.String(), `| x \| y |`)
}

func TestRenderer_Sources(t *testing.T) {
	buf := new(bytes.Buffer)
	r := NewRenderer(buf, FormatTable)

	sources := []domain.SourceConfig{
		{Name: "cognee", Kind: domain.SourceKindCognee, URL: "http://localhost:8000", Enabled: true, Weight: 0.3},
		{Name: "graph", Kind: domain.SourceKindNeo4j, URL: "neo4j://localhost:7687"},
	}
	require.NoError(t, r.Sources(sources, domain.DefaultRankingWeights()))

	out := buf.String()
	assert.Contains(t, out, "cognee")
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "relevance 0.40")
}

func TestRenderer_MessageJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	NewRenderer(buf, FormatJSON).Message("cache %s", "cleared")
	assert.JSONEq(t, `{"status":"cache cleared"}`, buf.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t\tc"))

	long := strings.Repeat("x", 300)
	got := preview(long)
	assert.Len(t, []rune(got), contentPreview)
	assert.True(t, strings.HasSuffix(got, "..."))
}
