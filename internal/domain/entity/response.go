package entity

// SchemaVersion is the canonical response schema version. The schema
// enforcer rejects anything else.
const SchemaVersion = 1

// BlockedModel is the model_used value on synthesized blocked responses.
const BlockedModel = "guardrail"

// FinishReason is the canonical terminal state of a response. Closed set:
// adapters must collapse every provider-specific finish state into one of
// these four values.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolUse       FinishReason = "tool_use"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// Valid reports whether f is one of the four canonical values.
func (f FinishReason) Valid() bool {
	switch f {
	case FinishStop, FinishToolUse, FinishLength, FinishContentFilter:
		return true
	}
	return false
}

// ToolCall is a model-requested tool invocation. Arguments is the
// JSON-encoded argument object as produced by the provider.
type ToolCall struct {
	ID           string `json:"id"`
	FunctionName string `json:"function_name"`
	Arguments    string `json:"arguments"`
}

// Usage records token consumption and the computed cost of one call.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Response is the canonical response shape, invariant across all code
// paths including blocked ones. Content is a pointer so "explicitly
// absent" (nil) is distinguishable from the empty string.
type Response struct {
	SchemaVersion int          `json:"schema_version"`
	ID            string       `json:"id"`
	ModelUsed     string       `json:"model_used"`
	Content       *string      `json:"content"`
	ToolCalls     []ToolCall   `json:"tool_calls"`
	FinishReason  FinishReason `json:"finish_reason"`
	Usage         Usage        `json:"usage"`
}

// NewBlockedResponse synthesizes the canonical blocked response for a
// request: absent content, no tool calls, content_filter finish, zero usage.
func NewBlockedResponse(requestID string) *Response {
	return &Response{
		SchemaVersion: SchemaVersion,
		ID:            requestID,
		ModelUsed:     BlockedModel,
		Content:       nil,
		ToolCalls:     []ToolCall{},
		FinishReason:  FinishContentFilter,
		Usage:         Usage{},
	}
}
