package tool

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestFormatTrends(t *testing.T) {
	t.Run("ranked keyword volume pairs from text content", func(t *testing.T) {
		res := mcp.NewToolResultText(`[{"keyword":"world cup","volume":500000},{"keyword":"elections","volume":200000}]`)

		out := formatTrends("US", res)

		assert.Contains(t, out, "Google Trends (US):")
		assert.Contains(t, out, "1. world cup (Volume: 500000)")
		assert.Contains(t, out, "2. elections (Volume: 200000)")
	})

	t.Run("caps entries at ten", func(t *testing.T) {
		entries := make([]trendEntry, 15)
		for i := range entries {
			entries[i] = trendEntry{Keyword: "kw", Volume: int64(i)}
		}
		res := &mcp.CallToolResult{StructuredContent: map[string]any{"result": entries}}

		out := formatTrends("US", res)

		assert.Contains(t, out, "10. kw")
		assert.NotContains(t, out, "11. kw")
	})

	t.Run("falls back to raw text when not keyword data", func(t *testing.T) {
		res := mcp.NewToolResultText("trending: sports, weather")

		out := formatTrends("GB", res)

		assert.Contains(t, out, "Google Trends (GB):")
		assert.Contains(t, out, "trending: sports, weather")
	})

	t.Run("empty result", func(t *testing.T) {
		res := mcp.NewToolResultText("")

		out := formatTrends("US", res)

		assert.Contains(t, out, "No trends data available.")
	})
}

func TestParseTrendEntries(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		res := mcp.NewToolResultText(`[{"keyword":"a","volume":1}]`)

		entries := parseTrendEntries(res)

		assert.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].Keyword)
	})

	t.Run("wrapped in result field", func(t *testing.T) {
		res := mcp.NewToolResultText(`{"result":[{"keyword":"b","volume":2}]}`)

		entries := parseTrendEntries(res)

		assert.Len(t, entries, 1)
		assert.Equal(t, "b", entries[0].Keyword)
	})

	t.Run("non-JSON text", func(t *testing.T) {
		res := mcp.NewToolResultText("plain text")

		assert.Nil(t, parseTrendEntries(res))
	})
}

func TestTrends_Metadata(t *testing.T) {
	tr := NewTrends("http://localhost:5000/mcp", WithTrendsGeo("DE"))

	assert.Equal(t, "Google_Trends_MCP", tr.Name())
	assert.Equal(t, "Google Trends", tr.DisplayName())
	assert.Equal(t, "DE", tr.geo)
}
