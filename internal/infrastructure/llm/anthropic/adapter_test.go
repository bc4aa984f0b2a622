package anthropic

import (
	"testing"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	return New(llm.AdapterConfig{APIKey: "test-key"}, zap.NewNop())
}

func TestTransformRequest(t *testing.T) {
	adapter := newTestAdapter(t)

	req := &entity.Request{
		ID:           "req-1",
		Provider:     entity.ProviderAnthropic,
		Model:        "claude-sonnet-4-20250514",
		SystemPrompt: "You are a helpful assistant.",
		Messages: []entity.Message{
			{Role: entity.RoleUser, Content: "What's the weather in Oslo?"},
			{Role: entity.RoleAssistant, Content: "Let me check."},
			{Role: entity.RoleTool, Content: `{"temp_c": 12}`},
		},
		Tools: []entity.ToolDefinition{{
			Name:        "get_weather",
			Description: "Current weather for a city",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
		MaxTokens: 1024,
	}

	raw, err := adapter.TransformRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	apiReq := raw.(*Request)

	if apiReq.System != "You are a helpful assistant." {
		t.Errorf("system = %q", apiReq.System)
	}
	if apiReq.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", apiReq.MaxTokens)
	}
	if len(apiReq.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(apiReq.Messages))
	}
	if apiReq.Messages[0].Role != "user" || apiReq.Messages[0].Content[0].Text != "What's the weather in Oslo?" {
		t.Errorf("first message = %+v", apiReq.Messages[0])
	}
	if apiReq.Messages[1].Role != "assistant" {
		t.Errorf("assistant role = %q", apiReq.Messages[1].Role)
	}
	// Tool results travel as user-role tool_result blocks.
	if apiReq.Messages[2].Role != "user" || apiReq.Messages[2].Content[0].Type != "tool_result" {
		t.Errorf("tool message = %+v", apiReq.Messages[2])
	}
	if len(apiReq.Tools) != 1 || apiReq.Tools[0].Name != "get_weather" {
		t.Errorf("tools = %+v", apiReq.Tools)
	}
}

func TestTransformRequest_DefaultMaxTokens(t *testing.T) {
	adapter := newTestAdapter(t)
	raw, err := adapter.TransformRequest(&entity.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := raw.(*Request).MaxTokens; got != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", got, defaultMaxTokens)
	}
}

func TestTransformRequest_ToolUseCapability(t *testing.T) {
	adapter := newTestAdapter(t)
	_, err := adapter.TransformRequest(&entity.Request{
		Model:    "claude-instant-1.2",
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
		Tools:    []entity.ToolDefinition{{Name: "get_weather"}},
	})
	if err == nil {
		t.Error("tools on a no-tool-use model should fail TransformRequest")
	}
}

func TestTransformResponse_Text(t *testing.T) {
	adapter := newTestAdapter(t)
	body := []byte(`{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1000, "output_tokens": 500}
	}`)

	raw := adapter.TransformResponse(body, "req-1")
	resp, ok := raw.(*entity.Response)
	if !ok {
		t.Fatalf("TransformResponse returned %T", raw)
	}

	if resp.ID != "req-1" {
		t.Errorf("id = %q, want the canonical request id", resp.ID)
	}
	if resp.SchemaVersion != entity.SchemaVersion {
		t.Errorf("schema_version = %d", resp.SchemaVersion)
	}
	if resp.Content == nil || *resp.Content != "Hello there." {
		t.Errorf("content = %v", resp.Content)
	}
	if resp.FinishReason != entity.FinishStop {
		t.Errorf("finish_reason = %q", resp.FinishReason)
	}
	if resp.Usage.InputTokens != 1000 || resp.Usage.OutputTokens != 500 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	// 1000 in at $3/M + 500 out at $15/M.
	if resp.Usage.CostUSD != 0.0105 {
		t.Errorf("cost = %v, want 0.0105", resp.Usage.CostUSD)
	}
}

func TestTransformResponse_ToolUse(t *testing.T) {
	adapter := newTestAdapter(t)
	body := []byte(`{
		"id": "msg_02",
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Oslo"}}],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 50, "output_tokens": 20}
	}`)

	resp := adapter.TransformResponse(body, "req-2").(*entity.Response)

	if resp.FinishReason != entity.FinishToolUse {
		t.Errorf("finish_reason = %q", resp.FinishReason)
	}
	if resp.Content != nil {
		t.Error("tool-only response should have absent content")
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool_calls = %+v", resp.ToolCalls)
	}
	call := resp.ToolCalls[0]
	if call.ID != "toolu_1" || call.FunctionName != "get_weather" {
		t.Errorf("call = %+v", call)
	}
	if call.Arguments != `{"city":"Oslo"}` {
		t.Errorf("arguments = %q", call.Arguments)
	}
}

func TestTransformResponse_Garbage(t *testing.T) {
	adapter := newTestAdapter(t)
	if got := adapter.TransformResponse([]byte("not json"), "req-3"); got != nil {
		t.Errorf("unparseable body should map to nil, got %T", got)
	}
	if got := adapter.TransformResponse(42, "req-3"); got != nil {
		t.Errorf("non-bytes raw value should map to nil, got %T", got)
	}
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		reason string
		want   entity.FinishReason
	}{
		{"end_turn", entity.FinishStop},
		{"stop_sequence", entity.FinishStop},
		{"tool_use", entity.FinishToolUse},
		{"max_tokens", entity.FinishLength},
		{"refusal", entity.FinishContentFilter},
		{"", entity.FinishContentFilter},
	}
	for _, tt := range tests {
		if got := mapStopReason(tt.reason); got != tt.want {
			t.Errorf("mapStopReason(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestRatesFor(t *testing.T) {
	tests := []struct {
		model   string
		wantIn  float64
		wantOut float64
	}{
		{"claude-opus-4-20250514", 15.0, 75.0},
		{"claude-sonnet-4-20250514", 3.0, 15.0},
		{"claude-3-5-haiku-20241022", 0.80, 4.0},
		{"claude-next-unknown", 3.0, 15.0},
	}
	for _, tt := range tests {
		in, out := ratesFor(tt.model)
		if in != tt.wantIn || out != tt.wantOut {
			t.Errorf("ratesFor(%q) = %v/%v, want %v/%v", tt.model, in, out, tt.wantIn, tt.wantOut)
		}
	}
}

func TestValidateCapabilities(t *testing.T) {
	adapter := newTestAdapter(t)

	if !adapter.ValidateCapabilities("claude-sonnet-4-20250514", service.CapabilityToolUse) {
		t.Error("current models support tool use")
	}
	if adapter.ValidateCapabilities("claude-instant-1.2", service.CapabilityToolUse) {
		t.Error("claude-instant predates tool use")
	}
	if adapter.ValidateCapabilities("claude-sonnet-4-20250514", service.Capability("telepathy")) {
		t.Error("unknown capability should be rejected")
	}
}
