package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient finds logos with Claude and its built-in web search tool.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Claude-backed client. Extra request options
// (base URL, HTTP client) are passed through to the SDK.
func NewAnthropicClient(apiKey string, model string, opts ...option.RequestOption) *AnthropicClient {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string     { return a.model }

func (a *AnthropicClient) FindLogoURL(ctx context.Context, domain string, name string) (*LogoSearchResult, error) {
	submitTool := anthropic.ToolParam{
		Name:        submitToolName,
		Description: param.NewOpt("Submit the logo URL you found. Call this tool once you have found the best logo URL."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: submissionProperties(),
		},
	}

	// Claude searches, reads results, and finally calls the submit tool.
	tools := []anthropic.ToolUnionParam{
		{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{}},
		{OfTool: &submitTool},
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(domain, name))),
	}

	for turn := 0; turn < maxTurns; turn++ {
		message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: 1024,
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic API call: %w", err)
		}

		var pending []anthropic.ContentBlockParamUnion
		for _, block := range message.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			switch toolUse.Name {
			case submitToolName:
				raw, err := json.Marshal(toolUse.Input)
				if err != nil {
					return nil, fmt.Errorf("marshaling tool input: %w", err)
				}
				return parseSubmission(raw, domain)
			case "web_search":
				// results are injected by the API
			default:
				pending = append(pending,
					anthropic.NewToolResultBlock(toolUse.ID, "Received, please continue searching.", false))
			}
		}

		if message.StopReason == anthropic.StopReasonEndTurn {
			return nil, fmt.Errorf("%w: claude ended the turn for %s", ErrNoResult, domain)
		}

		messages = append(messages, message.ToParam())
		if len(pending) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pending...))
		}
	}

	return nil, fmt.Errorf("%w: exceeded %d turns for %s", ErrNoResult, maxTurns, domain)
}
