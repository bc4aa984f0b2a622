package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
)

// preflightRatePerToken is the conservative USD rate used for the
// pre-flight cost estimate: the most expensive tier any allowed provider
// bills at.
const preflightRatePerToken = 15.0 / 1_000_000

// AlignmentChecker runs the pre-flight policy checks: provider allow-list,
// estimated cost ceiling, and tool scope. All three run on every request;
// violations are collected, not short-circuited.
type AlignmentChecker struct {
	logger *zap.Logger
}

// NewAlignmentChecker creates an alignment checker.
func NewAlignmentChecker(logger *zap.Logger) *AlignmentChecker {
	return &AlignmentChecker{logger: logger}
}

// Check validates the (already masked) request against the policy. A nil
// registry silently skips the tool-scope check.
func (c *AlignmentChecker) Check(req *entity.Request, cfg *config.PolicyConfig, registry tool.SkillRegistry) Verdict {
	var violations []entity.Violation

	if !cfg.AgnosticSettings.Allows(req.Provider) {
		violations = append(violations, entity.Violation{
			Code:        entity.CodeProviderNotAllowed,
			Message:     fmt.Sprintf("provider %q is not on the project allow-list", req.Provider),
			Interceptor: entity.InterceptorAlignment,
			Payload: map[string]interface{}{
				"provider":          string(req.Provider),
				"allowed_providers": cfg.AgnosticSettings.AllowedProviders,
			},
		})
	}

	estimatedTokens, estimatedCost := estimateSpend(req)
	if estimatedCost > cfg.AgnosticSettings.MaxTokenSpendPerCall {
		c.logger.Warn("Pre-flight budget exceeded",
			zap.String("request_id", req.ID),
			zap.Int("estimated_tokens", estimatedTokens),
			zap.Float64("estimated_cost_usd", estimatedCost),
			zap.Float64("ceiling_usd", cfg.AgnosticSettings.MaxTokenSpendPerCall),
		)
		violations = append(violations, entity.Violation{
			Code:        entity.CodeBudgetExceeded,
			Message:     "estimated call cost exceeds the per-call spend ceiling",
			Interceptor: entity.InterceptorAlignment,
			Payload: map[string]interface{}{
				"estimated_tokens":   estimatedTokens,
				"estimated_cost_usd": estimatedCost,
				"ceiling_usd":        cfg.AgnosticSettings.MaxTokenSpendPerCall,
			},
		})
	}

	if registry != nil {
		for _, def := range req.Tools {
			if registry.Has(def.Name) {
				continue
			}
			violations = append(violations, entity.Violation{
				Code:        entity.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q is not in the skill registry", def.Name),
				Interceptor: entity.InterceptorAlignment,
				Payload: map[string]interface{}{
					"tool": def.Name,
				},
			})
		}
	}

	if len(violations) > 0 {
		return Block(violations...)
	}
	return Pass()
}

// estimateSpend applies the ceil(chars/4) token heuristic over all textual
// content and prices it at the conservative per-token rate.
func estimateSpend(req *entity.Request) (tokens int, costUSD float64) {
	chars := 0
	for _, text := range collectRequestText(req) {
		chars += len(text)
	}
	tokens = (chars + 3) / 4
	costUSD = float64(tokens) * preflightRatePerToken
	return tokens, costUSD
}
