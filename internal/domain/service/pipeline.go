package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/audit"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/ledger"
)

// PipelineOptions are the per-call collaborators.
type PipelineOptions struct {
	// SkillRegistry grounds tool definitions and tool calls. Nil skips
	// grounding.
	SkillRegistry tool.SkillRegistry
}

// Pipeline chains the six interceptors around one adapter call:
//
//	injection → pii mask → alignment → adapter → schema → grounding → hallucination
//
// Every failure becomes data in the returned (response, violations) pair;
// the pipeline never panics or returns an error to the caller, and the
// response shape is canonical on every path including blocked ones.
type Pipeline struct {
	cfg    *config.PolicyConfig
	logger *zap.Logger

	injection *InjectionScanner
	masker    *PIIMasker
	alignment *AlignmentChecker
	schema    *SchemaEnforcer
	grounder  *ToolGrounder
	scraper   *HallucinationScraper

	auditSink audit.Sink
	costs     *ledger.CostLedger
}

// NewPipeline creates a pipeline bound to a frozen policy.
func NewPipeline(cfg *config.PolicyConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		injection: NewInjectionScanner(logger),
		masker:    NewPIIMasker(logger),
		alignment: NewAlignmentChecker(logger),
		schema:    NewSchemaEnforcer(),
		grounder:  NewToolGrounder(logger),
		scraper:   NewHallucinationScraper(logger),
	}
}

// SetAuditSink attaches an audit sink. Call before serving traffic.
func (p *Pipeline) SetAuditSink(sink audit.Sink) {
	p.auditSink = sink
}

// SetCostLedger attaches a cost ledger. Call before serving traffic.
func (p *Pipeline) SetCostLedger(costs *ledger.CostLedger) {
	p.costs = costs
}

var inboundInterceptors = []entity.Interceptor{
	entity.InterceptorInjection,
	entity.InterceptorPII,
	entity.InterceptorAlignment,
}

var outboundInterceptors = []entity.Interceptor{
	entity.InterceptorSchema,
	entity.InterceptorGrounding,
	entity.InterceptorHallucination,
}

// Run executes the full pipeline for one request against the resolved
// adapter.
func (p *Pipeline) Run(ctx context.Context, req *entity.Request, adapter Adapter, opts PipelineOptions) (resp *entity.Response, violations []entity.Violation) {
	start := time.Now()
	ran := inboundInterceptors

	// The no-panic contract is load-bearing: a misbehaving adapter or
	// registry must still produce a canonical blocked response.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline panic recovered",
				zap.String("request_id", req.ID),
				zap.Any("panic", r),
			)
			violations = []entity.Violation{{
				Code:        entity.CodeAdapterError,
				Message:     fmt.Sprintf("pipeline panic: %v", r),
				Interceptor: entity.InterceptorPipeline,
			}}
			resp = entity.NewBlockedResponse(req.ID)
			p.audit(ctx, req, resp, violations, ran, start)
		}
	}()

	// 1. Injection scan (read-only).
	if verdict := p.injection.Scan(req, p.cfg.SecurityTier); verdict.Blocked {
		return p.blocked(ctx, req, verdict.Violations, ran, start)
	}

	// 2. PII mask, the working request from here on. Never blocks.
	working := p.masker.Mask(req, p.cfg.AgnosticSettings.RedactPII)

	// 3. Alignment: allow-list, budget, tool scope.
	if verdict := p.alignment.Check(working, p.cfg, opts.SkillRegistry); verdict.Blocked {
		return p.blocked(ctx, req, verdict.Violations, ran, start)
	}

	// 4. Adapter boundary. Failures collapse into one ADAPTER_ERROR.
	providerReq, err := adapter.TransformRequest(working)
	if err != nil {
		return p.blocked(ctx, req, []entity.Violation{adapterViolation(err)}, ran, start)
	}
	if err := ctx.Err(); err != nil {
		return p.blocked(ctx, req, []entity.Violation{adapterViolation(err)}, ran, start)
	}
	raw, err := adapter.Execute(ctx, providerReq)
	if err != nil {
		return p.blocked(ctx, req, []entity.Violation{adapterViolation(err)}, ran, start)
	}

	// 5. Back to the canonical shape.
	rawResp := adapter.TransformResponse(raw, req.ID)
	ran = append(append([]entity.Interceptor{}, inboundInterceptors...), outboundInterceptors...)

	// 6. Schema enforcement.
	typed, verdict := p.schema.Enforce(rawResp)
	if verdict.Blocked {
		return p.blocked(ctx, req, verdict.Violations, ran, start)
	}

	// 7. Tool grounding.
	if verdict := p.grounder.Ground(typed, opts.SkillRegistry); verdict.Blocked {
		return p.blocked(ctx, req, verdict.Violations, ran, start)
	}

	// 8. Hallucination scrape. A block here keeps the real response body
	// (the content has forensic value) but still rewrites the finish
	// reason and clears nothing else.
	if verdict := p.scraper.Scrape(typed, p.cfg.DependencyWhitelist); verdict.Blocked {
		typed.FinishReason = entity.FinishContentFilter
		p.recordCost(req, typed)
		p.audit(ctx, req, typed, verdict.Violations, ran, start)
		return typed, verdict.Violations
	}

	p.recordCost(req, typed)
	p.audit(ctx, req, typed, nil, ran, start)
	return typed, nil
}

// blocked synthesizes the canonical blocked response and audits the call.
func (p *Pipeline) blocked(ctx context.Context, req *entity.Request, violations []entity.Violation, ran []entity.Interceptor, start time.Time) (*entity.Response, []entity.Violation) {
	resp := entity.NewBlockedResponse(req.ID)
	p.audit(ctx, req, resp, violations, ran, start)
	return resp, violations
}

func (p *Pipeline) recordCost(req *entity.Request, resp *entity.Response) {
	if p.costs == nil || req.SessionID == "" {
		return
	}
	p.costs.Record(req.SessionID, resp.Usage.CostUSD)
}

func (p *Pipeline) audit(ctx context.Context, req *entity.Request, resp *entity.Response, violations []entity.Violation, ran []entity.Interceptor, start time.Time) {
	outcome := audit.OutcomePass
	if len(violations) > 0 {
		outcome = audit.OutcomeBlocked
	}

	p.logger.Info("Pipeline call finished",
		zap.String("request_id", req.ID),
		zap.String("provider", string(req.Provider)),
		zap.String("outcome", string(outcome)),
		zap.Int("violations", len(violations)),
		zap.Duration("duration", time.Since(start)),
	)

	if p.auditSink == nil {
		return
	}

	entry := audit.Entry{
		Timestamp:    start,
		RequestID:    req.ID,
		Provider:     req.Provider,
		Model:        req.Model,
		SessionID:    req.SessionID,
		Interceptors: ran,
		Violations:   violations,
		Outcome:      outcome,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      resp.Usage.CostUSD,
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if entry.Violations == nil {
		entry.Violations = []entity.Violation{}
	}

	if err := p.auditSink.Write(ctx, entry); err != nil {
		p.logger.Warn("Audit sink write failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}
}

func adapterViolation(err error) entity.Violation {
	return entity.Violation{
		Code:        entity.CodeAdapterError,
		Message:     err.Error(),
		Interceptor: entity.InterceptorPipeline,
	}
}
