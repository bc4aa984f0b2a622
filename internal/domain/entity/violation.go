package entity

// ViolationCode classifies a policy violation. Closed set.
type ViolationCode string

const (
	CodeInjectionDetected     ViolationCode = "INJECTION_DETECTED"
	CodePIIDetected           ViolationCode = "PII_DETECTED" // reserved: the masker redacts instead of blocking
	CodeBudgetExceeded        ViolationCode = "BUDGET_EXCEEDED"
	CodeProviderNotAllowed    ViolationCode = "PROVIDER_NOT_ALLOWED"
	CodeSchemaMismatch        ViolationCode = "SCHEMA_MISMATCH"
	CodeToolNotGrounded       ViolationCode = "TOOL_NOT_GROUNDED"
	CodeHallucinationDetected ViolationCode = "HALLUCINATION_DETECTED"
	CodeAdapterError          ViolationCode = "ADAPTER_ERROR"
	CodeConfigError           ViolationCode = "CONFIG_ERROR"
)

// Interceptor names the producer of a violation. Closed set: the six
// pipeline stages plus the orchestrator itself.
type Interceptor string

const (
	InterceptorInjection     Interceptor = "injection_scanner"
	InterceptorPII           Interceptor = "pii_masker"
	InterceptorAlignment     Interceptor = "alignment_checker"
	InterceptorSchema        Interceptor = "schema_enforcer"
	InterceptorGrounding     Interceptor = "tool_grounder"
	InterceptorHallucination Interceptor = "hallucination_scraper"
	InterceptorPipeline      Interceptor = "pipeline"
)

// Violation is the structured record of one policy breach. Payload is
// sanitized forensic context and must never carry raw PII.
type Violation struct {
	Code        ViolationCode          `json:"code"`
	Message     string                 `json:"message"`
	Interceptor Interceptor            `json:"interceptor"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}
