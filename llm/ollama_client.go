package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/ollama/ollama/api"
)

const ollamaProvider = "ollama"

// OllamaClient runs completions against a local Ollama daemon. No credential
// is needed; the daemon address comes from OLLAMA_HOST.
type OllamaClient struct {
	client *api.Client
	model  string
}

func NewOllamaClient(model string, client *api.Client) *OllamaClient {
	return &OllamaClient{
		client: client,
		model:  model,
	}
}

func (c *OllamaClient) GetModel() string {
	return c.model
}

func (c *OllamaClient) GenerateInference(ctx context.Context, messages []Message, callback func(chunk string) error, opts ...LLMOption) error {
	settings := defaultSettings(c.model, opts)

	stream := false
	req := &api.ChatRequest{
		Model:    settings.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": settings.temperature,
			"num_predict": settings.maxTokens,
		},
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return statusError(ollamaProvider, statusErr.StatusCode, err)
		}
		return transportError(ollamaProvider, err)
	}

	return callback(content.String())
}

func toOllamaMessages(messages []Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{Role: string(msg.Role), Content: msg.Content}
	}
	return result
}
