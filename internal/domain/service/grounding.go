package service

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
)

// ToolGrounder confirms every tool call in a response refers to a real,
// registered skill whose arguments validate. With no registry injected,
// grounding is skipped; that deployment defers it to observability.
type ToolGrounder struct {
	logger *zap.Logger
}

// NewToolGrounder creates a tool grounder.
func NewToolGrounder(logger *zap.Logger) *ToolGrounder {
	return &ToolGrounder{logger: logger}
}

// Ground validates each tool call against the registry. All violations are
// collected; any non-empty set blocks.
func (g *ToolGrounder) Ground(resp *entity.Response, registry tool.SkillRegistry) Verdict {
	if len(resp.ToolCalls) == 0 || registry == nil {
		return Pass()
	}

	validator, hasValidator := registry.(tool.ArgumentValidator)

	var violations []entity.Violation
	for _, call := range resp.ToolCalls {
		if !registry.Has(call.FunctionName) {
			g.logger.Warn("Ungrounded tool call",
				zap.String("request_id", resp.ID),
				zap.String("tool", call.FunctionName),
			)
			violations = append(violations, entity.Violation{
				Code:        entity.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q is not in the skill registry", call.FunctionName),
				Interceptor: entity.InterceptorGrounding,
				Payload: map[string]interface{}{
					"tool": call.FunctionName,
				},
			})
			continue
		}

		if !hasValidator {
			continue
		}

		var args map[string]interface{}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			violations = append(violations, entity.Violation{
				Code:        entity.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q arguments are not valid JSON", call.FunctionName),
				Interceptor: entity.InterceptorGrounding,
				Payload: map[string]interface{}{
					"tool":      call.FunctionName,
					"arguments": call.Arguments,
				},
			})
			continue
		}

		if !validator.ValidateArguments(call.FunctionName, args) {
			violations = append(violations, entity.Violation{
				Code:        entity.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q arguments failed validation", call.FunctionName),
				Interceptor: entity.InterceptorGrounding,
				Payload: map[string]interface{}{
					"tool": call.FunctionName,
				},
			})
		}
	}

	if len(violations) > 0 {
		return Block(violations...)
	}
	return Pass()
}
