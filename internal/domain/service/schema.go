package service

import (
	"fmt"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

// SchemaEnforcer validates the raw value produced by an adapter's
// TransformResponse against the canonical response shape. Adapters are not
// trusted: the enforcer re-checks every field and collects one
// SCHEMA_MISMATCH violation per failure.
type SchemaEnforcer struct{}

// NewSchemaEnforcer creates a schema enforcer.
func NewSchemaEnforcer() *SchemaEnforcer {
	return &SchemaEnforcer{}
}

// Enforce returns the value typed as a canonical response on pass, or a
// block carrying the full list of structural violations.
func (e *SchemaEnforcer) Enforce(raw interface{}) (*entity.Response, Verdict) {
	switch v := raw.(type) {
	case *entity.Response:
		if v == nil {
			return nil, Block(fieldViolation("", "response is not an object"))
		}
		return e.enforceTyped(v)
	case map[string]interface{}:
		return e.enforceMap(v)
	default:
		return nil, Block(fieldViolation("", "response is not an object"))
	}
}

// enforceTyped checks the constraints the Go type system cannot express.
func (e *SchemaEnforcer) enforceTyped(resp *entity.Response) (*entity.Response, Verdict) {
	var violations []entity.Violation

	if resp.SchemaVersion != entity.SchemaVersion {
		violations = append(violations, fieldViolation("schema_version",
			fmt.Sprintf("schema_version must equal %d", entity.SchemaVersion)))
	}
	if resp.ID == "" {
		violations = append(violations, fieldViolation("id", "id must be a non-empty string"))
	}
	if !resp.FinishReason.Valid() {
		violations = append(violations, fieldViolation("finish_reason",
			fmt.Sprintf("unknown finish_reason %q", resp.FinishReason)))
	}

	if len(violations) > 0 {
		return nil, Block(violations...)
	}
	return resp, Pass()
}

// enforceMap decodes a JSON-shaped map field by field, collecting every
// structural violation before deciding.
func (e *SchemaEnforcer) enforceMap(m map[string]interface{}) (*entity.Response, Verdict) {
	var violations []entity.Violation
	resp := &entity.Response{ToolCalls: []entity.ToolCall{}}

	if version, ok := asInt(m["schema_version"]); ok && version == entity.SchemaVersion {
		resp.SchemaVersion = version
	} else {
		violations = append(violations, fieldViolation("schema_version",
			fmt.Sprintf("schema_version must equal %d", entity.SchemaVersion)))
	}

	if id, ok := m["id"].(string); ok && id != "" {
		resp.ID = id
	} else {
		violations = append(violations, fieldViolation("id", "id must be a non-empty string"))
	}

	if model, ok := m["model_used"].(string); ok {
		resp.ModelUsed = model
	} else {
		violations = append(violations, fieldViolation("model_used", "model_used must be a string"))
	}

	switch content := m["content"].(type) {
	case nil:
		resp.Content = nil
	case string:
		resp.Content = &content
	default:
		violations = append(violations, fieldViolation("content", "content must be a string or null"))
	}

	switch calls := m["tool_calls"].(type) {
	case nil:
	case []interface{}:
		for i, item := range calls {
			call, ok := item.(map[string]interface{})
			if !ok {
				violations = append(violations, fieldViolation(
					fmt.Sprintf("tool_calls[%d]", i), "tool call must be an object"))
				continue
			}
			name, nameOK := call["function_name"].(string)
			args, argsOK := call["arguments"].(string)
			if !nameOK {
				violations = append(violations, fieldViolation(
					fmt.Sprintf("tool_calls[%d].function_name", i), "function_name must be a string"))
			}
			if !argsOK {
				violations = append(violations, fieldViolation(
					fmt.Sprintf("tool_calls[%d].arguments", i), "arguments must be a string"))
			}
			if nameOK && argsOK {
				id, _ := call["id"].(string)
				resp.ToolCalls = append(resp.ToolCalls, entity.ToolCall{
					ID:           id,
					FunctionName: name,
					Arguments:    args,
				})
			}
		}
	default:
		violations = append(violations, fieldViolation("tool_calls", "tool_calls must be an array"))
	}

	if reason, ok := m["finish_reason"].(string); ok && entity.FinishReason(reason).Valid() {
		resp.FinishReason = entity.FinishReason(reason)
	} else {
		violations = append(violations, fieldViolation("finish_reason",
			fmt.Sprintf("unknown finish_reason %v", m["finish_reason"])))
	}

	if usage, ok := m["usage"].(map[string]interface{}); ok {
		if in, ok := asInt(usage["input_tokens"]); ok {
			resp.Usage.InputTokens = in
		} else {
			violations = append(violations, fieldViolation("usage.input_tokens", "input_tokens must be a number"))
		}
		if out, ok := asInt(usage["output_tokens"]); ok {
			resp.Usage.OutputTokens = out
		} else {
			violations = append(violations, fieldViolation("usage.output_tokens", "output_tokens must be a number"))
		}
		if cost, ok := asFloat(usage["cost_usd"]); ok {
			resp.Usage.CostUSD = cost
		} else {
			violations = append(violations, fieldViolation("usage.cost_usd", "cost_usd must be a number"))
		}
	} else {
		violations = append(violations, fieldViolation("usage", "usage must be an object"))
	}

	if len(violations) > 0 {
		return nil, Block(violations...)
	}
	return resp, Pass()
}

func fieldViolation(field, message string) entity.Violation {
	v := entity.Violation{
		Code:        entity.CodeSchemaMismatch,
		Message:     message,
		Interceptor: entity.InterceptorSchema,
	}
	if field != "" {
		v.Payload = map[string]interface{}{"field": field}
	}
	return v
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
