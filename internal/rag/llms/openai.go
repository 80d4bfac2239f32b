package llms

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
)

// OpenAI is an LLM client for the OpenAI chat completion API. Generation is
// deterministic (temperature 0) and completion length is capped, matching
// the short grounded answers this service produces.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates a new OpenAI client. An empty key is allowed; requests
// will fail with an authentication error until one is provided.
func NewOpenAI(apiKey, model string, maxTokens int) (*OpenAI, error) {
	config := openai.DefaultConfig(apiKey)
	client := openai.NewClientWithConfig(config)
	return &OpenAI{client: client, model: model, maxTokens: maxTokens}, nil
}

// Generate issues one chat completion call and returns the answer text with
// the provider-reported token usage.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (*schema.Generation, error) {
	temperature := float32(0)
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: &temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &schema.Generation{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// compile-time check to ensure OpenAI implements the LLM interface
var _ interfaces.LLM = (*OpenAI)(nil)
