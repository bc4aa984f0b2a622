package audit

import (
	"context"
	"time"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

// Outcome tags whether a call passed the full pipeline or was blocked.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeBlocked Outcome = "blocked"
)

// Entry is the structured audit record for one pipeline call. Sinks see
// every call, blocked or not.
type Entry struct {
	Timestamp    time.Time            `json:"timestamp"`
	RequestID    string               `json:"request_id"`
	Provider     entity.Provider      `json:"provider"`
	Model        string               `json:"model"`
	SessionID    string               `json:"session_id,omitempty"`
	Interceptors []entity.Interceptor `json:"interceptors"`
	Violations   []entity.Violation   `json:"violations"`
	Outcome      Outcome              `json:"outcome"`
	InputTokens  int                  `json:"input_tokens"`
	OutputTokens int                  `json:"output_tokens"`
	CostUSD      float64              `json:"cost_usd"`
	DurationMS   int64                `json:"duration_ms"`
}

// Sink consumes audit entries. Implementations must tolerate concurrent
// calls.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}
