package service

import (
	"context"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

// Capability tags a model feature an adapter can self-report.
type Capability string

const (
	CapabilityToolUse      Capability = "tool_use"
	CapabilitySystemPrompt Capability = "system_prompt"
	CapabilityVision       Capability = "vision"
)

// Adapter is the four-method provider boundary. The pipeline works only
// through this contract: no provider-native shape, transport error or
// concrete adapter type ever crosses it.
type Adapter interface {
	// TransformRequest maps the canonical request into the provider wire
	// shape. It fails when the request asks for a capability the model does
	// not support (e.g. tool use).
	TransformRequest(req *entity.Request) (interface{}, error)

	// Execute performs the provider call. Transport, retry and timeout are
	// handled inside; exhausted retries, timeouts and non-success statuses
	// surface as errors which the pipeline wraps into ADAPTER_ERROR.
	Execute(ctx context.Context, providerReq interface{}) (interface{}, error)

	// TransformResponse maps the raw provider response into the canonical
	// shape, echoing the given request identifier. Every provider-specific
	// finish state collapses into one of the four canonical values; unknown
	// states become content_filter. The returned value is re-validated by
	// the schema enforcer.
	TransformResponse(raw interface{}, requestID string) interface{}

	// ValidateCapabilities reports whether the model supports the
	// capability, from a read-only model-to-features matrix.
	ValidateCapabilities(model string, capability Capability) bool
}
