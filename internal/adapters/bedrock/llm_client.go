package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
	"go.uber.org/zap"
)

// BedrockClient is an implementation of the ModelClient port using the
// Amazon Bedrock Converse API with tool use
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Name identifies the model for record metadata
func (c *BedrockClient) Name() string {
	return c.modelID
}

// Converse sends one turn of the conversation and normalizes the response
func (c *BedrockClient) Converse(ctx context.Context, system string, tools []core.ToolDefinition, history []core.Turn) (*core.ModelTurn, error) {
	messages, err := c.buildMessages(history)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.modelID),
		Messages: messages,
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(c.maxTokens)),
			Temperature: aws.Float32(c.temperature),
			TopP:        aws.Float32(c.topP),
		},
	}
	if len(tools) > 0 {
		input.ToolConfig = buildToolConfig(tools)
	}

	resp, err := c.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	output, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected Bedrock output type %T", resp.Output)
	}

	turn := &core.ModelTurn{}
	if resp.Usage != nil {
		turn.Usage = core.TokenUsage{
			Prompt:     int(aws.ToInt32(resp.Usage.InputTokens)),
			Completion: int(aws.ToInt32(resp.Usage.OutputTokens)),
			Total:      int(aws.ToInt32(resp.Usage.TotalTokens)),
		}
	}

	for _, block := range output.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			turn.Content += b.Value
		case *types.ContentBlockMemberToolUse:
			args := []byte("{}")
			if b.Value.Input != nil {
				if raw, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
					args = raw
				}
			}
			turn.ToolRequests = append(turn.ToolRequests, core.ToolRequest{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}

	switch resp.StopReason {
	case types.StopReasonToolUse:
		turn.Kind = core.TurnToolCalls
	case types.StopReasonEndTurn:
		if turn.Content != "" {
			turn.Kind = core.TurnFinished
		} else {
			turn.Kind = core.TurnInconclusive
		}
	default:
		c.logger.Warn("Inconclusive Bedrock stop reason",
			zap.String("stop_reason", string(resp.StopReason)))
		turn.Kind = core.TurnInconclusive
	}

	return turn, nil
}

// buildMessages converts the conversation history into Converse messages.
// Tool results travel back to the model as user-role tool result blocks.
func (c *BedrockClient) buildMessages(history []core.Turn) ([]types.Message, error) {
	messages := make([]types.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case core.RoleAssistant:
			message := types.Message{Role: types.ConversationRoleAssistant}
			if turn.Content != "" {
				message.Content = append(message.Content,
					&types.ContentBlockMemberText{Value: turn.Content})
			}
			for _, req := range turn.ToolRequests {
				var args map[string]any
				if err := json.Unmarshal(req.Arguments, &args); err != nil {
					args = map[string]any{}
				}
				message.Content = append(message.Content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(req.ID),
						Name:      aws.String(req.Name),
						Input:     document.NewLazyDocument(args),
					},
				})
			}
			messages = append(messages, message)
		case core.RoleTool:
			message := types.Message{Role: types.ConversationRoleUser}
			for _, result := range turn.ToolResults {
				message.Content = append(message.Content, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(result.ID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: result.Content},
						},
					},
				})
			}
			messages = append(messages, message)
		default:
			messages = append(messages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{
						Value: c.textProcessor.ProcessText(turn.Content, c.maxBodySize),
					},
				},
			})
		}
	}
	return messages, nil
}

// buildToolConfig converts tool definitions into a Converse tool
// configuration
func buildToolConfig(tools []core.ToolDefinition) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, def := range tools {
		properties := map[string]any{}
		required := []string{}
		for _, param := range def.Parameters {
			properties[param.Name] = map[string]any{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(def.Name),
				Description: aws.String(def.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}
