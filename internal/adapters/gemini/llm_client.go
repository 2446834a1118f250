package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
	"go.uber.org/zap"
)

// GeminiClient is an implementation of the ModelClient port using Google
// Gemini function calling
type GeminiClient struct {
	client        *genai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	client *genai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *GeminiClient {
	return &GeminiClient{
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

// Close closes the underlying Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Name identifies the model for record metadata
func (c *GeminiClient) Name() string {
	return c.modelName
}

// Converse sends one turn of the conversation and normalizes the response.
// A fresh model handle is built per call because the system instruction
// and tool set vary between the agentic and fallback paths.
func (c *GeminiClient) Converse(ctx context.Context, system string, tools []core.ToolDefinition, history []core.Turn) (*core.ModelTurn, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(c.temperature)
	model.SetTopP(c.topP)
	model.SetMaxOutputTokens(int32(c.maxTokens))
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	if len(tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(tools)}}
	}

	contents, err := c.buildContents(history)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("empty conversation history")
	}

	session := model.StartChat()
	session.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	candidate := resp.Candidates[0]
	turn := &core.ModelTurn{}
	if resp.UsageMetadata != nil {
		turn.Usage = core.TokenUsage{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Completion: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			turn.Content += string(p)
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				args = []byte("{}")
			}
			// Gemini does not assign call identifiers; mint one so the
			// invocation log stays addressable.
			turn.ToolRequests = append(turn.ToolRequests, core.ToolRequest{
				ID:        uuid.NewString(),
				Name:      p.Name,
				Arguments: args,
			})
		}
	}

	switch {
	case len(turn.ToolRequests) > 0:
		turn.Kind = core.TurnToolCalls
	case candidate.FinishReason == genai.FinishReasonStop && turn.Content != "":
		turn.Kind = core.TurnFinished
	default:
		c.logger.Warn("Inconclusive Gemini finish reason",
			zap.Int32("finish_reason", int32(candidate.FinishReason)))
		turn.Kind = core.TurnInconclusive
	}

	return turn, nil
}

// buildContents converts the conversation history into Gemini contents
func (c *GeminiClient) buildContents(history []core.Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case core.RoleAssistant:
			content := &genai.Content{Role: "model"}
			if turn.Content != "" {
				content.Parts = append(content.Parts, genai.Text(turn.Content))
			}
			for _, req := range turn.ToolRequests {
				var args map[string]any
				if err := json.Unmarshal(req.Arguments, &args); err != nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, genai.FunctionCall{
					Name: req.Name,
					Args: args,
				})
			}
			contents = append(contents, content)
		case core.RoleTool:
			content := &genai.Content{Role: "function"}
			for _, result := range turn.ToolResults {
				var response map[string]any
				if err := json.Unmarshal([]byte(result.Content), &response); err != nil {
					response = map[string]any{"content": result.Content}
				}
				content.Parts = append(content.Parts, genai.FunctionResponse{
					Name:     result.Name,
					Response: response,
				})
			}
			contents = append(contents, content)
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(c.textProcessor.ProcessText(turn.Content, c.maxBodySize))},
			})
		}
	}
	return contents, nil
}

// buildDeclarations converts tool definitions into Gemini function
// declarations
func buildDeclarations(tools []core.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, def := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		}
		for _, param := range def.Parameters {
			schema.Properties[param.Name] = &genai.Schema{
				Type:        schemaType(param.Type),
				Description: param.Description,
			}
			if param.Required {
				schema.Required = append(schema.Required, param.Name)
			}
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return declarations
}

// schemaType maps a tool parameter type to its Gemini schema type
func schemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
