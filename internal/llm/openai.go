package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint. Groq speaks the Chat
// Completions wire format, so the same client serves both providers.
const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider implements Provider using the OpenAI Chat Completions API,
// optionally pointed at any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
}

// NewOpenAIProvider creates a provider against api.openai.com.
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		name:   "openai",
		model:  model,
	}
}

// NewGroqProvider creates a provider against Groq's OpenAI-compatible API.
func NewGroqProvider(apiKey string, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		name:   "groq",
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []openai.ChatCompletionMessage
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	if req.JSONMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	var finishReason string
	if len(resp.Choices) > 0 {
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: finishReason,
	}, nil
}
