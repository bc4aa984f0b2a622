package ollama

import (
	"testing"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm"
)

func TestTransformResponse_LocalModelsAreFree(t *testing.T) {
	adapter := New(llm.AdapterConfig{}, zap.NewNop())
	body := []byte(`{
		"model": "llama3.1:8b",
		"message": {"role": "assistant", "content": "Hei!"},
		"done_reason": "stop",
		"prompt_eval_count": 12,
		"eval_count": 4
	}`)

	resp := adapter.TransformResponse(body, "req-1").(*entity.Response)

	if resp.ID != "req-1" || resp.ModelUsed != "llama3.1:8b" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Content == nil || *resp.Content != "Hei!" {
		t.Errorf("content = %v", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Usage.CostUSD != 0 {
		t.Errorf("local model cost = %v, want 0", resp.Usage.CostUSD)
	}
}

func TestTransformResponse_ToolCallArguments(t *testing.T) {
	adapter := New(llm.AdapterConfig{}, zap.NewNop())
	// Ollama returns arguments as a decoded object, not a string.
	body := []byte(`{
		"model": "llama3.1:8b",
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{"function": {"name": "get_weather", "arguments": {"city": "Oslo"}}}]
		},
		"done_reason": "stop",
		"prompt_eval_count": 10,
		"eval_count": 8
	}`)

	resp := adapter.TransformResponse(body, "req-2").(*entity.Response)

	if resp.FinishReason != entity.FinishToolUse {
		t.Errorf("finish_reason = %q (tool calls present)", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Arguments != `{"city":"Oslo"}` {
		t.Errorf("tool_calls = %+v", resp.ToolCalls)
	}
}

func TestMapDoneReason(t *testing.T) {
	tests := []struct {
		reason   string
		hasCalls bool
		want     entity.FinishReason
	}{
		{"stop", false, entity.FinishStop},
		{"", false, entity.FinishStop},
		{"length", false, entity.FinishLength},
		{"load_failure", false, entity.FinishContentFilter},
		{"stop", true, entity.FinishToolUse},
	}
	for _, tt := range tests {
		if got := mapDoneReason(tt.reason, tt.hasCalls); got != tt.want {
			t.Errorf("mapDoneReason(%q, %v) = %q, want %q", tt.reason, tt.hasCalls, got, tt.want)
		}
	}
}
