package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig selects models per role. BaseURL is optional and allows
// pointing at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey        string `validate:"required"`
	BaseURL       string
	PlannerModel  string
	ExecutorModel string
}

// OpenAIClient implements ChatModel, Planner and Completer on top of
// the OpenAI chat completions API.
type OpenAIClient struct {
	client        *openai.Client
	plannerModel  string
	executorModel string
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	plannerModel := cfg.PlannerModel
	if plannerModel == "" {
		plannerModel = openai.GPT4o
	}

	executorModel := cfg.ExecutorModel
	if executorModel == "" {
		executorModel = openai.GPT4o
	}

	return &OpenAIClient{
		client:        openai.NewClientWithConfig(clientConfig),
		plannerModel:  plannerModel,
		executorModel: executorModel,
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	request := openai.ChatCompletionRequest{
		Model:    c.executorModel,
		Messages: toOpenAIMessages(messages),
	}

	for _, tool := range tools {
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return Message{}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return Message{}, fmt.Errorf("chat completion returned no choices")
	}

	return fromOpenAIMessage(response.Choices[0].Message), nil
}

func (c *OpenAIClient) GeneratePlan(ctx context.Context, systemPrompt, userPrompt string) (*PlanResponse, error) {
	response, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.plannerModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planning completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("planning completion returned no choices")
	}

	plan := &PlanResponse{}

	content := stripCodeFences(response.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan response: %w", err)
	}

	return plan, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.executorModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, message := range messages {
		entry := openai.ChatCompletionMessage{
			Role:       message.Role,
			Content:    message.Content,
			ToolCallID: message.ToolCallID,
		}

		for _, call := range message.ToolCalls {
			entry.ToolCalls = append(entry.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}

		converted = append(converted, entry)
	}

	return converted
}

func fromOpenAIMessage(message openai.ChatCompletionMessage) Message {
	converted := Message{
		Role:    message.Role,
		Content: message.Content,
	}

	for _, call := range message.ToolCalls {
		converted.ToolCalls = append(converted.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return converted
}

func stripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	return strings.TrimSpace(cleaned)
}
