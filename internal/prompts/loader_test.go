package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(Visibility, KeyConsumerQueries)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.BusinessName}}")
	assert.Contains(t, prompt, "{{.Count}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.ErrorContains(t, err, "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(Visibility, "nonexistent-key")
	assert.ErrorContains(t, err, "not found")
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGet(Visibility, KeyAnswerQuery))
	})
}

func TestFormat(t *testing.T) {
	result := Format("Best {{.Service}} in {{.Location}}?", map[string]string{
		"Service":  "plumber",
		"Location": "Sydney",
	})
	assert.Equal(t, "Best plumber in Sydney?", result)

	// Unknown placeholders stay.
	assert.Equal(t, "Hello {{.Name}}", Format("Hello {{.Name}}", nil))
}

func TestRender_AnswerQuery(t *testing.T) {
	ClearCache()

	prompt, err := Render(KeyAnswerQuery, map[string]string{
		"Assistant": "Claude",
		"Location":  "Australia",
		"Query":     "Who fixes burst pipes fast?",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "You are Claude")
	assert.Contains(t, prompt, "Who fixes burst pipes fast?")
	assert.NotContains(t, prompt, "{{.")
}

func TestQueriesKey(t *testing.T) {
	key, err := QueriesKey("consumer")
	require.NoError(t, err)
	assert.Equal(t, KeyConsumerQueries, key)

	key, err = QueriesKey("business")
	require.NoError(t, err)
	assert.Equal(t, KeyBusinessQueries, key)

	_, err = QueriesKey("partner")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(Visibility)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAnswerQuery, KeyBusinessQueries, KeyConsumerQueries}, keys)
}

func TestCaching(t *testing.T) {
	ClearCache()

	first, err := Get(Visibility, KeyBusinessQueries)
	require.NoError(t, err)
	second, err := Get(Visibility, KeyBusinessQueries)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
