package service

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
)

func testPolicy() *config.PolicyConfig {
	return &config.PolicyConfig{
		ProjectName:   "test-project",
		SecurityTier:  config.TierModerate,
		SchemaVersion: 1,
		AgnosticSettings: config.AgnosticSettings{
			RedactPII:            true,
			MaxTokenSpendPerCall: 0.50,
			AllowedProviders:     []entity.Provider{entity.ProviderAnthropic, entity.ProviderOllama},
		},
		DependencyWhitelist: []string{"lodash", "react", "@types/node"},
	}
}

func TestAlignmentChecker_ProviderAllowList(t *testing.T) {
	checker := NewAlignmentChecker(zap.NewNop())
	cfg := testPolicy()

	allowed := &entity.Request{
		ID:       "req-ok",
		Provider: entity.ProviderAnthropic,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	}
	if v := checker.Check(allowed, cfg, nil); v.Blocked {
		t.Fatalf("allowed provider blocked: %+v", v.Violations)
	}

	denied := &entity.Request{
		ID:       "req-denied",
		Provider: entity.ProviderOpenAI,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	}
	v := checker.Check(denied, cfg, nil)
	if !v.Blocked {
		t.Fatal("unlisted provider passed")
	}
	if v.Violations[0].Code != entity.CodeProviderNotAllowed {
		t.Errorf("code = %s", v.Violations[0].Code)
	}
	if v.Violations[0].Interceptor != entity.InterceptorAlignment {
		t.Errorf("interceptor = %s", v.Violations[0].Interceptor)
	}
}

func TestAlignmentChecker_BudgetCeiling(t *testing.T) {
	checker := NewAlignmentChecker(zap.NewNop())

	// 200k characters estimate to 50k tokens, $0.75 at the pre-flight rate.
	big := &entity.Request{
		ID:       "req-big",
		Provider: entity.ProviderAnthropic,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: strings.Repeat("a", 200_000)}},
	}
	v := checker.Check(big, testPolicy(), nil)
	if !v.Blocked {
		t.Fatal("oversized request passed the $0.50 ceiling")
	}
	if v.Violations[0].Code != entity.CodeBudgetExceeded {
		t.Errorf("code = %s", v.Violations[0].Code)
	}
	if got := v.Violations[0].Payload["estimated_tokens"]; got != 50_000 {
		t.Errorf("estimated_tokens = %v, want 50000", got)
	}

	// An estimate exactly at the ceiling passes; only strictly greater blocks.
	exact := &entity.Request{
		ID:       "req-exact",
		Provider: entity.ProviderAnthropic,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: strings.Repeat("a", 400)}},
	}
	cfg := testPolicy()
	cfg.AgnosticSettings.MaxTokenSpendPerCall = float64(100) * (15.0 / 1_000_000)
	if v := checker.Check(exact, cfg, nil); v.Blocked {
		t.Errorf("estimate equal to ceiling blocked: %+v", v.Violations)
	}
}

func TestEstimateSpend(t *testing.T) {
	tests := []struct {
		chars      int
		wantTokens int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{400, 100},
	}
	for _, tt := range tests {
		req := &entity.Request{
			Messages: []entity.Message{{Role: entity.RoleUser, Content: strings.Repeat("x", tt.chars)}},
		}
		tokens, _ := estimateSpend(req)
		if tokens != tt.wantTokens {
			t.Errorf("estimateSpend(%d chars) = %d tokens, want %d", tt.chars, tokens, tt.wantTokens)
		}
	}
}

func TestAlignmentChecker_ToolScope(t *testing.T) {
	checker := NewAlignmentChecker(zap.NewNop())
	cfg := testPolicy()

	registry := tool.NewStaticRegistry()
	if err := registry.Register(tool.Skill{Name: "get_weather"}); err != nil {
		t.Fatal(err)
	}

	req := &entity.Request{
		ID:       "req-tools",
		Provider: entity.ProviderAnthropic,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
		Tools: []entity.ToolDefinition{
			{Name: "get_weather"},
			{Name: "delete_database"},
		},
	}

	v := checker.Check(req, cfg, registry)
	if !v.Blocked {
		t.Fatal("unknown tool definition passed")
	}
	if len(v.Violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(v.Violations))
	}
	if v.Violations[0].Code != entity.CodeToolNotGrounded {
		t.Errorf("code = %s", v.Violations[0].Code)
	}
	if v.Violations[0].Payload["tool"] != "delete_database" {
		t.Errorf("payload tool = %v", v.Violations[0].Payload["tool"])
	}

	// Nil registry skips the tool-scope check entirely.
	if v := checker.Check(req, cfg, nil); v.Blocked {
		t.Errorf("nil registry should skip tool scope: %+v", v.Violations)
	}
}

func TestAlignmentChecker_CollectsAllViolations(t *testing.T) {
	checker := NewAlignmentChecker(zap.NewNop())
	cfg := testPolicy()
	registry := tool.NewStaticRegistry()

	req := &entity.Request{
		ID:       "req-multi",
		Provider: entity.ProviderOpenAI,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: strings.Repeat("a", 200_000)}},
		Tools:    []entity.ToolDefinition{{Name: "unknown_tool"}},
	}

	v := checker.Check(req, cfg, registry)
	if !v.Blocked {
		t.Fatal("expected block")
	}
	if len(v.Violations) != 3 {
		t.Fatalf("got %d violations, want 3 (provider, budget, tool)", len(v.Violations))
	}
}
