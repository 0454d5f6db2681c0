package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKeys(t *testing.T) {
	tests := []struct {
		name      string
		preferred Provider
		anthropic string
		openai    string
		want      string
		wantErr   bool
	}{
		{name: "preferred anthropic", preferred: ProviderAnthropic, anthropic: "a", openai: "o", want: "anthropic"},
		{name: "preferred openai", preferred: ProviderOpenAI, anthropic: "a", openai: "o", want: "openai"},
		{name: "fallback to openai", preferred: ProviderAnthropic, openai: "o", want: "openai"},
		{name: "fallback to anthropic", preferred: ProviderOpenAI, anthropic: "a", want: "anthropic"},
		{name: "no keys", preferred: ProviderAnthropic, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := FromKeys(tt.preferred, tt.anthropic, tt.openai)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingAPIKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.Name())
			assert.NotEmpty(t, client.Models())
		})
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ProviderOpenAI, "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ProviderAnthropic, "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIMessages_PrependsSystem(t *testing.T) {
	msgs := openAIMessages(&CompletionRequest{
		System:   "be brief",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestFoldSystem(t *testing.T) {
	req := &CompletionRequest{
		System: "be brief",
		Messages: []ChatMessage{
			{Role: "assistant", Content: "zero"},
			{Role: "user", Content: "one"},
			{Role: "user", Content: "two"},
		},
	}

	folded := foldSystem(req)

	assert.Equal(t, "zero", folded[0].Content)
	assert.Equal(t, "be brief\n\none", folded[1].Content)
	assert.Equal(t, "two", folded[2].Content)
	assert.Equal(t, "one", req.Messages[1].Content, "request is not modified")
	assert.Len(t, anthropicMessages(req), 3)
}
