package service

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
)

// basePatterns match structural injection intent and apply at every tier:
// explicit override, role reassignment, priority inversion, context
// poisoning. Matching is case-insensitive.
var basePatterns = []*regexp.Regexp{
	// Explicit override
	regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|context|commands)`),

	// Role reassignment
	regexp.MustCompile(`(?i)your\s+(real|true|actual|new|primary)\s+(role|purpose|goal|task|job|objective)\s+is`),
	regexp.MustCompile(`(?i)you\s+are\s+(now|actually|really)\s+an?\s`),
	regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+(are|were)`),

	// Priority inversion
	regexp.MustCompile(`(?i)as\s+a\s+reminder,?\s+your\s+(real|actual|true|primary)\s+task`),
	regexp.MustCompile(`(?i)the\s+(real|actual|true)\s+instructions\s+(are|is|follow)`),

	// Context poisoning
	regexp.MustCompile(`(?i)\[system\][\s\S]{0,50}(ignore|override|forget|disregard)`),
	regexp.MustCompile(`(?i)</?system>`),
}

// strictPatterns apply only at the STRICT tier: roleplay and hypothetical
// framings that MODERATE deployments tolerate.
var strictPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)in\s+this\s+(scenario|roleplay|game|story|fiction),?\s+(you\s+are|ignore)`),
	regexp.MustCompile(`(?i)hypothetically,?\s+if\s+you\s+(were|had\s+no)`),
	regexp.MustCompile(`(?i)pretend\s+(that\s+)?you\s+(are|lack|have\s+no)`),
}

// InjectionScanner tests every textual request field against a
// tier-selected pattern set. It is read-only: the request is never
// modified.
type InjectionScanner struct {
	logger *zap.Logger
}

// NewInjectionScanner creates an injection scanner.
func NewInjectionScanner(logger *zap.Logger) *InjectionScanner {
	return &InjectionScanner{logger: logger}
}

// Scan returns pass, or a block carrying exactly one INJECTION_DETECTED
// violation for the first matching pattern.
func (s *InjectionScanner) Scan(req *entity.Request, tier config.SecurityTier) Verdict {
	patterns := basePatterns
	if tier == config.TierStrict {
		patterns = make([]*regexp.Regexp, 0, len(basePatterns)+len(strictPatterns))
		patterns = append(patterns, basePatterns...)
		patterns = append(patterns, strictPatterns...)
	}

	for _, text := range collectRequestText(req) {
		for _, pattern := range patterns {
			if !pattern.MatchString(text) {
				continue
			}

			s.logger.Warn("Injection pattern matched",
				zap.String("request_id", req.ID),
				zap.String("pattern", pattern.String()),
			)

			return Block(entity.Violation{
				Code:        entity.CodeInjectionDetected,
				Message:     "request content matches a prompt-injection pattern",
				Interceptor: entity.InterceptorInjection,
				Payload: map[string]interface{}{
					"request_id": req.ID,
					"pattern":    pattern.String(),
				},
			})
		}
	}

	return Pass()
}
