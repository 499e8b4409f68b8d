package adk

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"agora/internal/adapters/ai"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// ModelAdapter adapts an ai.ChatProvider to ADK's model.LLM interface.
type ModelAdapter struct {
	provider  ai.ChatProvider
	modelName string
	maxTokens int
	log       *logger.Logger
}

// NewModelAdapter creates a new ADK model adapter.
func NewModelAdapter(provider ai.ChatProvider, modelName string, maxTokens int) *ModelAdapter {
	return &ModelAdapter{
		provider:  provider,
		modelName: modelName,
		maxTokens: maxTokens,
		log:       logger.Get().With("component", "model_adapter", "model", modelName),
	}
}

// Name returns the model name.
func (m *ModelAdapter) Name() string {
	return m.modelName
}

// GenerateContent implements model.LLM. Streaming requests get a single complete response.
func (m *ModelAdapter) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq := m.convertToChatRequest(req)

		m.log.Debugw("Calling LLM", "messages", len(chatReq.Messages), "tools", len(chatReq.Tools))

		resp, err := m.provider.Chat(ctx, chatReq)
		if err != nil {
			yield(nil, errors.Wrap(err, "chat provider failed"))
			return
		}

		yield(m.convertToADKResponse(resp), nil)
	}
}

func (m *ModelAdapter) convertToChatRequest(req *model.LLMRequest) ai.ChatRequest {
	chatReq := ai.ChatRequest{
		Model:     m.modelName,
		MaxTokens: m.maxTokens,
	}

	if req.Config != nil {
		if req.Config.Temperature != nil {
			chatReq.Temperature = float64(*req.Config.Temperature)
		}
		if system := contentText(req.Config.SystemInstruction); system != "" {
			chatReq.Messages = append(chatReq.Messages, ai.Message{Role: ai.RoleSystem, Content: system})
		}
		chatReq.Tools = convertTools(req.Config.Tools)
	}

	for _, content := range req.Contents {
		chatReq.Messages = append(chatReq.Messages, convertContent(content)...)
	}

	return chatReq
}

// convertContent maps one genai.Content to chat messages.
// Function responses become separate tool messages, one per call id.
func convertContent(content *genai.Content) []ai.Message {
	if content == nil {
		return nil
	}

	role := ai.RoleUser
	if content.Role == "model" {
		role = ai.RoleAssistant
	}

	msg := ai.Message{Role: role}
	var toolMsgs []ai.Message

	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			args, _ := json.Marshal(fc.Args)
			if fc.Args == nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, ai.ToolCall{
				ID:   callID(fc.ID, fc.Name),
				Type: "function",
				Function: ai.FunctionCall{
					Name:      fc.Name,
					Arguments: string(args),
				},
			})
		}
		if fr := part.FunctionResponse; fr != nil {
			data, err := json.Marshal(fr.Response)
			if err != nil {
				data = []byte(`{"error":"unserializable tool response"}`)
			}
			toolMsgs = append(toolMsgs, ai.Message{
				Role:       ai.RoleTool,
				Name:       fr.Name,
				ToolCallID: callID(fr.ID, fr.Name),
				Content:    string(data),
			})
		}
	}

	var out []ai.Message
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		out = append(out, msg)
	}
	return append(out, toolMsgs...)
}

func callID(id, name string) string {
	if id != "" {
		return id
	}
	return name
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, p := range c.Parts {
		if p != nil && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func convertTools(tools []*genai.Tool) []ai.ToolDefinition {
	var out []ai.ToolDefinition
	for _, t := range tools {
		if t == nil {
			continue
		}
		for _, fn := range t.FunctionDeclarations {
			if fn == nil {
				continue
			}
			out = append(out, ai.ToolDefinition{
				Type: "function",
				Function: ai.FunctionDefinition{
					Name:        fn.Name,
					Description: fn.Description,
					Parameters:  schemaToMap(fn.Parameters, fn.ParametersJsonSchema),
				},
			})
		}
	}
	return out
}

// schemaToMap prefers the raw JSON schema that functiontool generates and falls back to genai.Schema.
func schemaToMap(schema *genai.Schema, jsonSchema any) map[string]interface{} {
	if jsonSchema != nil {
		if m, ok := jsonSchema.(map[string]interface{}); ok {
			return m
		}
		if data, err := json.Marshal(jsonSchema); err == nil {
			var m map[string]interface{}
			if json.Unmarshal(data, &m) == nil {
				return m
			}
		}
	}

	if schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}

	out := map[string]interface{}{"type": schemaType(schema.Type)}
	if schema.Description != "" {
		out["description"] = schema.Description
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]interface{}, len(schema.Properties))
		for name, p := range schema.Properties {
			props[name] = schemaToMap(p, nil)
		}
		out["properties"] = props
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	if schema.Items != nil {
		out["items"] = schemaToMap(schema.Items, nil)
	}
	if len(schema.Enum) > 0 {
		out["enum"] = schema.Enum
	}
	return out
}

func schemaType(t genai.Type) string {
	switch t {
	case genai.TypeString:
		return "string"
	case genai.TypeNumber:
		return "number"
	case genai.TypeInteger:
		return "integer"
	case genai.TypeBoolean:
		return "boolean"
	case genai.TypeArray:
		return "array"
	default:
		return "object"
	}
}

func (m *ModelAdapter) convertToADKResponse(resp *ai.ChatResponse) *model.LLMResponse {
	if len(resp.Choices) == 0 {
		return &model.LLMResponse{
			FinishReason: genai.FinishReasonOther,
			ErrorMessage: "no choices in response",
			TurnComplete: true,
		}
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: "model"}

	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				m.log.Warnw("Tool call arguments are not valid JSON", "tool", tc.Function.Name, "error", err)
			}
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	finish := genai.FinishReasonStop
	if choice.FinishReason == ai.FinishReasonLength {
		finish = genai.FinishReasonMaxTokens
	}

	return &model.LLMResponse{
		Content:      content,
		FinishReason: finish,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.PromptTokens),
			CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
			TotalTokenCount:      int32(resp.Usage.TotalTokens),
		},
	}
}

// Ensure ModelAdapter implements model.LLM
var _ model.LLM = (*ModelAdapter)(nil)
