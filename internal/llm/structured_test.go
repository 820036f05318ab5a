package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/llm/llmtest"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

const pickSchema = `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {"enum": ["stats_query", "text_response"]},
    "season": {"type": "string"}
  }
}`

type pick struct {
	Intent string `json:"intent"`
	Season string `json:"season"`
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                         `{"a":1}`,
		"```json\n{\"a\":1}\n```":         `{"a":1}`,
		"```\n{\"a\":1}\n```":             `{"a":1}`,
		"Sure! Here you go: {\"a\":1} :)": `{"a":1}`,
		"no json here":                    "no json here",
		"  {\"a\":{\"b\":2}}  trailing ":  `{"a":{"b":2}}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, llm.ExtractJSON(in), in)
	}
}

func TestSchema_Decode(t *testing.T) {
	schema := llm.MustCompileSchema("pick", pickSchema)
	assert.Contains(t, schema.Source(), "stats_query")

	t.Run("valid", func(t *testing.T) {
		var out pick
		require.NoError(t, schema.Decode("```json\n{\"intent\":\"stats_query\",\"season\":\"2025\"}\n```", &out))
		assert.Equal(t, pick{Intent: "stats_query", Season: "2025"}, out)
	})

	t.Run("malformed", func(t *testing.T) {
		var out pick
		err := schema.Decode(`{"intent":`, &out)
		var parseErr *flowerrors.JSONParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, flowerrors.CategoryInvalidRequest, flowerrors.Classify(err))
	})

	t.Run("schema violation", func(t *testing.T) {
		var out pick
		err := schema.Decode(`{"intent":"dance"}`, &out)
		var valErr *flowerrors.ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, "/intent", valErr.Field)
		assert.Equal(t, flowerrors.CategoryInvalidRequest, flowerrors.Classify(err))
	})

	t.Run("missing required", func(t *testing.T) {
		var out pick
		err := schema.Decode(`{"season":"2025"}`, &out)
		var valErr *flowerrors.ValidationError
		require.True(t, errors.As(err, &valErr))
	})
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := llm.CompileSchema("broken", `{"type": 12}`)
	require.Error(t, err)
	assert.Panics(t, func() { llm.MustCompileSchema("broken", `{`) })
}

func TestStructured(t *testing.T) {
	schema := llm.MustCompileSchema("pick", pickSchema)

	t.Run("decodes reply and requests JSON", func(t *testing.T) {
		script := llmtest.NewScript(llmtest.JSON(map[string]any{"intent": "text_response"}))
		got, err := llm.Structured[pick](context.Background(), script, userRequest("hi"), schema)
		require.NoError(t, err)
		assert.Equal(t, "text_response", got.Intent)
		require.Len(t, script.Requests(), 1)
		assert.True(t, script.Requests()[0].JSON)
	})

	t.Run("call error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		script := llmtest.NewScript(llmtest.Fail(boom))
		_, err := llm.Structured[pick](context.Background(), script, userRequest("hi"), schema)
		require.ErrorIs(t, err, boom)
	})

	t.Run("invalid reply is not retried", func(t *testing.T) {
		script := llmtest.NewScript(llmtest.Text("nope"), llmtest.Text(`{"intent":"stats_query"}`))
		_, err := llm.Structured[pick](context.Background(), script, userRequest("hi"), schema)
		require.Error(t, err)
		assert.Equal(t, 1, script.Calls())
	})
}
