// Package ollama adapts the canonical shapes to a local Ollama instance
// via its native /api/chat endpoint. Local models bill at zero; token
// counts still flow so budget accounting stays uniform.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm"
)

// Request is the Ollama chat request format.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options carries sampling parameters.
type Options struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Tool mirrors the OpenAI function wrapper Ollama adopted.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is a tool definition.
type Function struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolCall is a model-requested function invocation. Ollama returns
// arguments as a decoded object, not a string.
type ToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

// Response is the Ollama chat response.
type Response struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	DoneReason      string  `json:"done_reason"` // "stop" | "length" | ...
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Adapter translates between the canonical shapes and a local Ollama
// server.
type Adapter struct {
	base    *llm.BaseAdapter
	baseURL string
	logger  *zap.Logger
}

var _ service.Adapter = (*Adapter)(nil)

// New creates an Ollama adapter.
func New(cfg llm.AdapterConfig, logger *zap.Logger) *Adapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Adapter{
		base:    llm.NewBaseAdapter(cfg, logger),
		baseURL: baseURL,
		logger:  logger.With(zap.String("provider", string(entity.ProviderOllama))),
	}
}

// TransformRequest maps the canonical request into the Ollama chat shape.
func (a *Adapter) TransformRequest(req *entity.Request) (interface{}, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, service.CapabilityToolUse) {
		return nil, fmt.Errorf("model %q does not support tool use", req.Model)
	}

	apiReq := &Request{
		Model:  req.Model,
		Stream: false,
	}
	if req.MaxTokens > 0 {
		apiReq.Options = &Options{NumPredict: req.MaxTokens}
	}

	if req.SystemPrompt != "" {
		apiReq.Messages = append(apiReq.Messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, Message{
			Role:    string(msg.Role),
			Content: flattenText(msg),
		})
	}

	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, Tool{
			Type: "function",
			Function: Function{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		})
	}

	return apiReq, nil
}

// Execute posts the chat request and returns the raw response bytes.
func (a *Adapter) Execute(ctx context.Context, providerReq interface{}) (interface{}, error) {
	apiReq, ok := providerReq.(*Request)
	if !ok {
		return nil, fmt.Errorf("unexpected provider request type %T", providerReq)
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return a.base.DoJSON(ctx, "POST", a.baseURL+"/api/chat", nil, body)
}

// TransformResponse maps the raw Ollama response to the canonical shape.
// Cost is always zero for local models.
func (a *Adapter) TransformResponse(raw interface{}, requestID string) interface{} {
	body, ok := raw.([]byte)
	if !ok {
		return nil
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		a.logger.Warn("Failed to parse provider response", zap.Error(err))
		return nil
	}

	resp := &entity.Response{
		SchemaVersion: entity.SchemaVersion,
		ID:            requestID,
		ModelUsed:     apiResp.Model,
		ToolCalls:     []entity.ToolCall{},
		FinishReason:  mapDoneReason(apiResp.DoneReason, len(apiResp.Message.ToolCalls) > 0),
		Usage: entity.Usage{
			InputTokens:  apiResp.PromptEvalCount,
			OutputTokens: apiResp.EvalCount,
			CostUSD:      0,
		},
	}

	if apiResp.Message.Content != "" {
		content := apiResp.Message.Content
		resp.Content = &content
	}
	for _, call := range apiResp.Message.ToolCalls {
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		resp.ToolCalls = append(resp.ToolCalls, entity.ToolCall{
			FunctionName: call.Function.Name,
			Arguments:    string(args),
		})
	}

	return resp
}

// ValidateCapabilities reports model support. Ollama advertises tool use
// generically; vision depends on the model family.
func (a *Adapter) ValidateCapabilities(model string, capability service.Capability) bool {
	switch capability {
	case service.CapabilityToolUse, service.CapabilitySystemPrompt:
		return true
	case service.CapabilityVision:
		return strings.Contains(model, "llava") || strings.Contains(model, "vision")
	}
	return false
}

func mapDoneReason(reason string, hasToolCalls bool) entity.FinishReason {
	if hasToolCalls {
		return entity.FinishToolUse
	}
	switch reason {
	case "stop", "":
		return entity.FinishStop
	case "length":
		return entity.FinishLength
	default:
		return entity.FinishContentFilter
	}
}

func flattenText(msg entity.Message) string {
	if len(msg.Blocks) == 0 {
		return msg.Content
	}
	var parts []string
	var walk func(blocks []entity.ContentBlock)
	walk = func(blocks []entity.ContentBlock) {
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
			walk(b.Content)
		}
	}
	walk(msg.Blocks)
	return strings.Join(parts, "\n")
}
