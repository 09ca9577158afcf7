package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const searchModeInstruction = "Ground your answer with a web search before responding, and cite what you find."

// OpenAIClient talks to any OpenAI-compatible completion endpoint.
type OpenAIClient struct {
	apiKey string
	client *openai.Client
}

func NewOpenAIClient(apiKey, apiHost string) *OpenAIClient {
	openAIConfig := openai.DefaultConfig(apiKey)
	openAIConfig.BaseURL = apiHost
	client := openai.NewClientWithConfig(openAIConfig)
	return &OpenAIClient{apiKey: apiKey, client: client}
}

type ChatCompletionStreamWrapper struct {
	stream *openai.ChatCompletionStream
}

func (s *ChatCompletionStreamWrapper) Close() { s.stream.Close() }
func (s *ChatCompletionStreamWrapper) Recv() (*StreamEvent, error) {
	response, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, errors.Errorf("ChatCompletionResponse returned no choice: %+v", response)
	}
	return &StreamEvent{
		Token:        response.Choices[0].Delta.Content,
		FinishReason: string(response.Choices[0].FinishReason),
	}, nil
}

func (c *OpenAIClient) CreateTextGeneration(ctx context.Context, request *CreateTextGenerationRequest) (Stream, error) {
	if c.apiKey == "" || c.apiKey == "API_KEY" {
		return nil, ErrMissingCredential
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SearchMode {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: searchModeInstruction,
		})
	}
	for _, message := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Content: message.Content, Role: message.Role})
	}
	openAIRequest := openai.ChatCompletionRequest{
		Model:       request.Model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
		Stream:      true,
		Messages:    messages,
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, openAIRequest)
	if err != nil {
		return nil, errors.Wrap(err, "creating completion stream")
	}
	return &ChatCompletionStreamWrapper{stream}, nil
}
