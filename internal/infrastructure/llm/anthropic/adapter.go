package anthropic

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

const apiVersion = "2023-06-01"

// defaultMaxTokens is sent when the request carries no hint; the Messages
// API requires an explicit max_tokens.
const defaultMaxTokens = 8192

// modelRates prices models in USD per million tokens, matched by model ID
// prefix. Unknown models fall back to the sonnet tier.
var modelRates = []struct {
	prefix string
	input  float64
	output float64
}{
	{"claude-opus", 15.0, 75.0},
	{"claude-sonnet", 3.0, 15.0},
	{"claude-3-7-sonnet", 3.0, 15.0},
	{"claude-3-5-haiku", 0.80, 4.0},
	{"claude-haiku", 1.0, 5.0},
}

const (
	fallbackInputRate  = 3.0
	fallbackOutputRate = 15.0
)

// legacy haiku models predate tool use; everything current supports it.
var noToolUsePrefixes = []string{"claude-instant", "claude-2"}

// Adapter translates between the canonical shapes and the Anthropic
// Messages API.
type Adapter struct {
	base    *llm.BaseAdapter
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

var _ service.Adapter = (*Adapter)(nil)

// New creates an Anthropic adapter.
func New(cfg llm.AdapterConfig, logger *zap.Logger) *Adapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &Adapter{
		base:    llm.NewBaseAdapter(cfg, logger),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With(zap.String("provider", string(entity.ProviderAnthropic))),
	}
}

// TransformRequest maps the canonical request into the Messages API shape.
func (a *Adapter) TransformRequest(req *entity.Request) (interface{}, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, service.CapabilityToolUse) {
		return nil, fmt.Errorf("model %q does not support tool use", req.Model)
	}

	apiReq := &Request{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = defaultMaxTokens
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case entity.RoleAssistant:
			apiReq.Messages = append(apiReq.Messages, Message{
				Role:    "assistant",
				Content: canonicalBlocks(msg),
			})
		case entity.RoleTool:
			// Tool results travel as user-role tool_result blocks.
			apiReq.Messages = append(apiReq.Messages, Message{
				Role: "user",
				Content: []ContentBlock{{
					Type:    "tool_result",
					Content: flattenText(msg),
				}},
			})
		default:
			apiReq.Messages = append(apiReq.Messages, Message{
				Role:    "user",
				Content: canonicalBlocks(msg),
			})
		}
	}

	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
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
		"x-api-key":         a.apiKey,
		"anthropic-version": apiVersion,
	}
	return a.base.DoJSON(ctx, "POST", a.baseURL+"/v1/messages", headers, body)
}

// TransformResponse maps the raw Messages API response to the canonical
// shape. Unknown stop reasons collapse to content_filter.
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
		FinishReason:  mapStopReason(apiResp.StopReason),
	}

	var text string
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				args = []byte("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, entity.ToolCall{
				ID:           block.ID,
				FunctionName: block.Name,
				Arguments:    string(args),
			})
		}
	}
	if text != "" {
		resp.Content = &text
	}

	inputRate, outputRate := ratesFor(apiResp.Model)
	resp.Usage = entity.Usage{
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		CostUSD:      llm.CalculateCost(apiResp.Usage.InputTokens, apiResp.Usage.OutputTokens, inputRate, outputRate),
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
		return !strings.HasPrefix(model, "claude-instant")
	}
	return false
}

func mapStopReason(reason string) entity.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return entity.FinishStop
	case "tool_use":
		return entity.FinishToolUse
	case "max_tokens":
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

// canonicalBlocks converts a canonical message body into text blocks,
// descending into nested block content.
func canonicalBlocks(msg entity.Message) []ContentBlock {
	if len(msg.Blocks) == 0 {
		return []ContentBlock{{Type: "text", Text: msg.Content}}
	}
	var out []ContentBlock
	appendBlocks(&out, msg.Blocks)
	if len(out) == 0 {
		out = []ContentBlock{{Type: "text", Text: ""}}
	}
	return out
}

func appendBlocks(out *[]ContentBlock, blocks []entity.ContentBlock) {
	for _, b := range blocks {
		if b.Text != "" {
			*out = append(*out, ContentBlock{Type: "text", Text: b.Text})
		}
		appendBlocks(out, b.Content)
	}
}

// flattenText joins all text in a message, for tool-result payloads.
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
