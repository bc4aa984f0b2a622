package openai

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

// modelRates prices models in USD per million tokens, matched by prefix.
var modelRates = []struct {
	prefix string
	input  float64
	output float64
}{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.0},
	{"gpt-4.1-mini", 0.40, 1.60},
	{"gpt-4.1", 2.0, 8.0},
	{"o3-mini", 1.10, 4.40},
	{"o3", 2.0, 8.0},
}

const (
	fallbackInputRate  = 2.50
	fallbackOutputRate = 10.0
)

// base models predating function calling.
var noToolUsePrefixes = []string{"gpt-3.5-turbo-instruct", "babbage", "davinci"}

// Adapter translates between the canonical shapes and the OpenAI Chat
// Completions API.
type Adapter struct {
	base    *llm.BaseAdapter
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

var _ service.Adapter = (*Adapter)(nil)

// New creates an OpenAI adapter.
func New(cfg llm.AdapterConfig, logger *zap.Logger) *Adapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Adapter{
		base:    llm.NewBaseAdapter(cfg, logger),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With(zap.String("provider", string(entity.ProviderOpenAI))),
	}
}

// TransformRequest maps the canonical request into the chat completions
// shape. The system prompt becomes the leading system message.
func (a *Adapter) TransformRequest(req *entity.Request) (interface{}, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, service.CapabilityToolUse) {
		return nil, fmt.Errorf("model %q does not support tool use", req.Model)
	}

	apiReq := &Request{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
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

// Execute posts the provider-shaped request and returns the raw response
// bytes.
func (a *Adapter) Execute(ctx context.Context, providerReq interface{}) (interface{}, error) {
	apiReq, ok := providerReq.(*Request)
	if !ok {
		return nil, fmt.Errorf("unexpected provider request type %T", providerReq)
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}
	return a.base.DoJSON(ctx, "POST", a.baseURL+"/v1/chat/completions", headers, body)
}

// TransformResponse maps the raw chat completions response to the
// canonical shape. Unknown finish reasons collapse to content_filter.
func (a *Adapter) TransformResponse(raw interface{}, requestID string) interface{} {
	body, ok := raw.([]byte)
	if !ok {
		return nil
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil || len(apiResp.Choices) == 0 {
		a.logger.Warn("Failed to parse provider response", zap.Error(err))
		return nil
	}
	choice := apiResp.Choices[0]

	resp := &entity.Response{
		SchemaVersion: entity.SchemaVersion,
		ID:            requestID,
		ModelUsed:     apiResp.Model,
		ToolCalls:     []entity.ToolCall{},
		FinishReason:  mapFinishReason(choice.FinishReason),
	}

	if choice.Message.Content != "" {
		content := choice.Message.Content
		resp.Content = &content
	}
	for _, call := range choice.Message.ToolCalls {
		args := call.Function.Arguments
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, entity.ToolCall{
			ID:           call.ID,
			FunctionName: call.Function.Name,
			Arguments:    args,
		})
	}

	inputRate, outputRate := ratesFor(apiResp.Model)
	resp.Usage = entity.Usage{
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
		CostUSD:      llm.CalculateCost(apiResp.Usage.PromptTokens, apiResp.Usage.CompletionTokens, inputRate, outputRate),
	}

	return resp
}

// ValidateCapabilities reports model support from the static feature
// matrix.
func (a *Adapter) ValidateCapabilities(model string, capability service.Capability) bool {
	switch capability {
	case service.CapabilityToolUse:
		for _, prefix := range noToolUsePrefixes {
			if strings.HasPrefix(model, prefix) {
				return false
			}
		}
		return true
	case service.CapabilitySystemPrompt:
		return true
	case service.CapabilityVision:
		return strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "gpt-4.1")
	}
	return false
}

func mapFinishReason(reason string) entity.FinishReason {
	switch reason {
	case "stop":
		return entity.FinishStop
	case "tool_calls", "function_call":
		return entity.FinishToolUse
	case "length":
		return entity.FinishLength
	default:
		return entity.FinishContentFilter
	}
}

func ratesFor(model string) (input, output float64) {
	for _, r := range modelRates {
		if strings.HasPrefix(model, r.prefix) {
			return r.input, r.output
		}
	}
	return fallbackInputRate, fallbackOutputRate
}

// flattenText joins string-form content and all nested block text.
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
