package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the ModelClient port using the
// OpenAI chat completions API with tool calling
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Name identifies the model for record metadata
func (c *OpenAIClient) Name() string {
	return c.modelName
}

// Converse sends one turn of the conversation and normalizes the response
func (c *OpenAIClient) Converse(ctx context.Context, system string, tools []core.ToolDefinition, history []core.Turn) (*core.ModelTurn, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, turn := range history {
		messages = append(messages, c.buildMessages(turn)...)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	for _, def := range tools {
		req.Tools = append(req.Tools, buildTool(def))
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	choice := resp.Choices[0]
	turn := &core.ModelTurn{
		Content: choice.Message.Content,
		Usage: core.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}

	switch {
	case len(choice.Message.ToolCalls) > 0:
		turn.Kind = core.TurnToolCalls
		for _, call := range choice.Message.ToolCalls {
			turn.ToolRequests = append(turn.ToolRequests, core.ToolRequest{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
	case choice.FinishReason == openai.FinishReasonStop && choice.Message.Content != "":
		turn.Kind = core.TurnFinished
	default:
		// Length cutoffs, content filters and anything else the API may
		// introduce are inconclusive, not errors.
		c.logger.Warn("Inconclusive OpenAI finish reason",
			zap.String("finish_reason", string(choice.FinishReason)))
		turn.Kind = core.TurnInconclusive
	}

	return turn, nil
}

// buildMessages converts one conversation turn into API messages
func (c *OpenAIClient) buildMessages(turn core.Turn) []openai.ChatCompletionMessage {
	switch turn.Role {
	case core.RoleAssistant:
		msg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: turn.Content,
		}
		for _, req := range turn.ToolRequests {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   req.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      req.Name,
					Arguments: string(req.Arguments),
				},
			})
		}
		return []openai.ChatCompletionMessage{msg}
	case core.RoleTool:
		messages := make([]openai.ChatCompletionMessage, 0, len(turn.ToolResults))
		for _, result := range turn.ToolResults {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result.Content,
				ToolCallID: result.ID,
			})
		}
		return messages
	default:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: c.textProcessor.ProcessText(turn.Content, c.maxBodySize),
		}}
	}
}

// buildTool converts a tool definition into the API's function schema
func buildTool(def core.ToolDefinition) openai.Tool {
	properties := make(map[string]jsonschema.Definition, len(def.Parameters))
	var required []string
	for _, param := range def.Parameters {
		properties[param.Name] = jsonschema.Definition{
			Type:        jsonschemaType(param.Type),
			Description: param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: properties,
				Required:   required,
			},
		},
	}
}

// jsonschemaType maps a tool parameter type to its schema type
func jsonschemaType(t string) jsonschema.DataType {
	switch t {
	case "integer":
		return jsonschema.Integer
	case "number":
		return jsonschema.Number
	case "boolean":
		return jsonschema.Boolean
	default:
		return jsonschema.String
	}
}
