package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient finds logos with OpenAI function calling.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed client. An empty baseURL uses the
// public API.
func NewOpenAIClient(apiKey string, model string, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string     { return o.model }

func (o *OpenAIClient) FindLogoURL(ctx context.Context, domain string, name string) (*LogoSearchResult, error) {
	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        submitToolName,
				Description: "Submit the logo URL found for the website. Call this once you have found the best logo URL.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": submissionProperties(),
					"required":   []string{"logo_url", "confidence"},
				},
			},
		},
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleSystem,
			Content: `You are a logo finder assistant. Find the official logo of a website.
Return the direct image URL via the submit_logo_url function. Prefer high-resolution PNG/SVG from official sources.`,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: buildPrompt(domain, name),
		},
	}

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, fmt.Errorf("openai API call: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}

		choice := resp.Choices[0]
		if len(choice.Message.ToolCalls) == 0 {
			if choice.FinishReason == openai.FinishReasonStop {
				return nil, fmt.Errorf("%w: openai stopped for %s", ErrNoResult, domain)
			}
			continue
		}

		messages = append(messages, choice.Message)
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name == submitToolName {
				return parseSubmission([]byte(call.Function.Arguments), domain)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    "Received. Please continue and call submit_logo_url with the logo URL.",
				ToolCallID: call.ID,
			})
		}
	}

	return nil, fmt.Errorf("%w: exceeded %d turns for %s", ErrNoResult, maxTurns, domain)
}
