package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/llm/llmtest"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

func TestFactory_Base(t *testing.T) {
	f := llm.NewFactory(llm.FactoryConfig{
		DefaultProvider: llm.ProviderGoogle,
		Keys: map[llm.Provider]llm.KeySource{
			llm.ProviderGoogle:    llm.StaticKey("g"),
			llm.ProviderOpenAI:    llm.StaticKey("o"),
			llm.ProviderAnthropic: llm.StaticKey(""),
		},
	})

	c, err := f.Base("gemini-2.0-flash")
	require.NoError(t, err)
	assert.IsType(t, &llm.GeminiClient{}, c)

	c, err = f.Base("gpt-4o")
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIClient{}, c)
	assert.Equal(t, "gpt-4o", c.Model())

	c, err = f.Base("custom-finetune")
	require.NoError(t, err)
	assert.IsType(t, &llm.GeminiClient{}, c)

	_, err = f.Base("claude-sonnet-4")
	require.ErrorIs(t, err, llm.ErrNoAPIKey)
}

func TestFactory_WrapRetriesAllButScout(t *testing.T) {
	f := llm.NewFactory(llm.FactoryConfig{MaxAttempts: 2})
	transient := &flowerrors.HTTPError{StatusCode: 503, Message: "connection reset"}

	for _, task := range []llm.Task{llm.TaskRouter, llm.TaskSQL, llm.TaskResponse} {
		script := llmtest.NewScript(llmtest.Fail(transient), llmtest.Text("ok"))
		resp, err := f.Wrap(task, script).Complete(context.Background(), userRequest("hi"))
		require.NoError(t, err, task)
		assert.Equal(t, "ok", resp.Text)
		assert.Equal(t, 2, script.Calls(), task)
	}

	script := llmtest.NewScript(llmtest.Fail(transient), llmtest.Text("ok"))
	_, err := f.Wrap(llm.TaskScout, script).Complete(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.Equal(t, 1, script.Calls())
}
