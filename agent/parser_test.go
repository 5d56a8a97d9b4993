package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registered = []string{"Tavily_Search", "Google_Trends_MCP"}

func TestParseAction(t *testing.T) {
	t.Run("parses action and input", func(t *testing.T) {
		text := "I should look this up.\nACTION: Tavily_Search\nINPUT: latest Go release\nThat should help."

		action := ParseAction(text, registered)

		require.NotNil(t, action)
		assert.Equal(t, "Tavily_Search", action.Tool)
		assert.Equal(t, "latest Go release", action.Input)
	})

	t.Run("returns nil when no action marker", func(t *testing.T) {
		action := ParseAction("The capital of France is Paris.", registered)

		assert.Nil(t, action)
	})

	t.Run("markers are case-insensitive", func(t *testing.T) {
		text := "action: Tavily_Search\ninput: weather in Oslo"

		action := ParseAction(text, registered)

		require.NotNil(t, action)
		assert.Equal(t, "Tavily_Search", action.Tool)
		assert.Equal(t, "weather in Oslo", action.Input)
	})

	t.Run("tool names are case-sensitive", func(t *testing.T) {
		action := ParseAction("ACTION: tavily_search\nINPUT: anything", registered)

		assert.Nil(t, action)
	})

	t.Run("unregistered tool is no action", func(t *testing.T) {
		action := ParseAction("ACTION: Wikipedia\nINPUT: Go language", registered)

		assert.Nil(t, action)
	})

	t.Run("missing input degrades to empty string", func(t *testing.T) {
		action := ParseAction("ACTION: Google_Trends_MCP", registered)

		require.NotNil(t, action)
		assert.Equal(t, "Google_Trends_MCP", action.Tool)
		assert.Empty(t, action.Input)
	})

	t.Run("input stops at the first line break", func(t *testing.T) {
		text := "ACTION: Tavily_Search\nINPUT: first line\nsecond line"

		action := ParseAction(text, registered)

		require.NotNil(t, action)
		assert.Equal(t, "first line", action.Input)
	})

	t.Run("input is trimmed", func(t *testing.T) {
		action := ParseAction("ACTION: Tavily_Search\nINPUT:    padded query   \n", registered)

		require.NotNil(t, action)
		assert.Equal(t, "padded query", action.Input)
	})

	t.Run("parsing does not consume the text", func(t *testing.T) {
		text := "ACTION: Tavily_Search\nINPUT: repeat me"

		first := ParseAction(text, registered)
		second := ParseAction(text, registered)

		assert.Equal(t, first, second)
	})
}
