package ai

import "context"

// ChatProvider is the completion endpoint behind every agent model. The ADK
// model adapter translates genai requests into ChatRequest and back.
type ChatProvider interface {
	// Name labels token metrics and log lines.
	Name() string

	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one round trip to the model. Zero sampling values leave the
// endpoint defaults in place.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Message is a turn in the prompt. Tool results carry ToolCallID and Name of
// the call they answer; assistant turns may carry ToolCalls instead of text.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolDefinition advertises a DB-agent tool to the model. Type is always "function".
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition holds the tool's name, description and JSON schema parameters.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// Choice is one candidate reply. Agents only read the first.
type Choice struct {
	Index        int
	Message      Message
	FinishReason FinishReason
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonError     FinishReason = "error"
)

// ToolCall asks the runner to execute a tool; Arguments is raw JSON.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

type FunctionCall struct {
	Name      string
	Arguments string
}

// Usage feeds agora_llm_tokens_total.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
