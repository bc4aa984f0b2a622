package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm"
	apperrors "github.com/guardgate/guardgate/gateway/pkg/errors"
)

// CompletionResult is the wire response: always the canonical response
// shape plus the (possibly empty) violations.
type CompletionResult struct {
	Response   *entity.Response   `json:"response"`
	Violations []entity.Violation `json:"violations"`
}

// CompletionHandler runs pipeline calls for HTTP clients.
type CompletionHandler struct {
	pipeline *service.Pipeline
	registry *llm.Registry
	skills   tool.SkillRegistry
	logger   *zap.Logger
}

// NewCompletionHandler creates a completion handler. skills may be nil.
func NewCompletionHandler(pipeline *service.Pipeline, registry *llm.Registry, skills tool.SkillRegistry, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		pipeline: pipeline,
		registry: registry,
		skills:   skills,
		logger:   logger,
	}
}

// Complete handles POST /v1/complete. Policy violations are data, not
// HTTP errors: blocked calls still return 200 with a canonical blocked
// response. Only malformed JSON is a 400.
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req entity.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	adapter, err := h.registry.Resolve(req.Provider)
	if err != nil {
		// Resolution failures keep the canonical shape too.
		violation := entity.Violation{
			Code:        entity.CodeProviderNotAllowed,
			Message:     err.Error(),
			Interceptor: entity.InterceptorPipeline,
		}
		var appErr *apperrors.AppError
		if e, ok := err.(*apperrors.AppError); ok {
			appErr = e
			violation.Payload = appErr.Details
		}
		h.logger.Warn("Adapter resolution failed",
			zap.String("request_id", req.ID),
			zap.String("provider", string(req.Provider)),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, CompletionResult{
			Response:   entity.NewBlockedResponse(req.ID),
			Violations: []entity.Violation{violation},
		})
		return
	}

	resp, violations := h.pipeline.Run(c.Request.Context(), &req, adapter, service.PipelineOptions{
		SkillRegistry: h.skills,
	})
	if violations == nil {
		violations = []entity.Violation{}
	}

	c.JSON(http.StatusOK, CompletionResult{
		Response:   resp,
		Violations: violations,
	})
}

// Providers handles GET /v1/providers: the allow-listed tags with a
// registered adapter.
func (h *CompletionHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.registry.Providers(),
	})
}
