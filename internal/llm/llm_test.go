package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderFor(t *testing.T) {
	tests := []struct {
		model string
		want  Provider
	}{
		{"gpt-4o", ProviderOpenAI},
		{"o1-mini", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"o3", ProviderOpenAI},
		{"gemini-2.0-flash", ProviderGoogle},
		{"Gemini-1.5-pro", ProviderGoogle},
		{"claude-sonnet-4", ProviderAnthropic},
		{"llama3", ProviderAnthropic},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ProviderFor(tt.model, ProviderAnthropic))
		})
	}
}

func TestTaskTemperature(t *testing.T) {
	assert.Equal(t, 0.0, TaskRouter.Temperature())
	assert.Equal(t, 0.0, TaskSQL.Temperature())
	assert.Equal(t, 0.3, TaskScout.Temperature())
	assert.Equal(t, 0.7, TaskResponse.Temperature())
}

func TestRequestMaxTokens(t *testing.T) {
	assert.Equal(t, DefaultMaxTokens, Request{}.maxTokens())
	assert.Equal(t, 100, Request{MaxTokens: 100}.maxTokens())
}

func TestAlternate(t *testing.T) {
	got := alternate([]Message{
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	})

	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "(conversation continues)"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "a\n\nb"},
		{Role: RoleAssistant, Content: "c"},
	}, got)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "only", flatten([]Message{{Role: RoleUser, Content: "only"}}))
	assert.Equal(t, "User: q\n\nAssistant: a", flatten([]Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}))
}
