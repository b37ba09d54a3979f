package llm

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// ProvideClient builds the completion client for the configured provider.
// Hosted providers fail with ErrMissingCredential when their key is absent.
func ProvideClient(provider, model, baseURL string) (LLMClient, error) {
	switch provider {
	case "", groqProvider:
		client, err := NewGroqClient(model)
		if err != nil {
			return nil, err
		}
		if baseURL != "" {
			client.url = baseURL
		}
		return client, nil
	case openAIProvider:
		client, err := NewOpenAIClient(model, baseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case anthropicProvider:
		client, err := NewAnthropicClient(model, baseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ollamaProvider:
		ollama, err := newOllamaAPIClient(baseURL)
		if err != nil {
			return nil, err
		}
		return NewOllamaClient(model, ollama), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// CredentialEnv names the environment variable holding the provider's API key.
func CredentialEnv(provider string) string {
	switch provider {
	case "", groqProvider:
		return "GROQ_API_KEY"
	case openAIProvider:
		return "OPENAI_API_KEY"
	case anthropicProvider:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

func newOllamaAPIClient(baseURL string) (*api.Client, error) {
	if baseURL == "" {
		return api.ClientFromEnvironment()
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}
