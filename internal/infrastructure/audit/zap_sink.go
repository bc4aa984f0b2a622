package audit

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink writes one structured log line per pipeline call. It is the
// default sink when no persistent store is configured.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a log-backed audit sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.With(zap.String("component", "audit"))}
}

// Write logs the entry. It never fails.
func (s *ZapSink) Write(_ context.Context, entry Entry) error {
	interceptors := make([]string, len(entry.Interceptors))
	for i, name := range entry.Interceptors {
		interceptors[i] = string(name)
	}

	s.logger.Info("Pipeline call audited",
		zap.Time("timestamp", entry.Timestamp),
		zap.String("request_id", entry.RequestID),
		zap.String("provider", string(entry.Provider)),
		zap.String("model", entry.Model),
		zap.String("session_id", entry.SessionID),
		zap.Strings("interceptors", interceptors),
		zap.Int("violation_count", len(entry.Violations)),
		zap.Any("violations", entry.Violations),
		zap.String("outcome", string(entry.Outcome)),
		zap.Int("input_tokens", entry.InputTokens),
		zap.Int("output_tokens", entry.OutputTokens),
		zap.Float64("cost_usd", entry.CostUSD),
		zap.Int64("duration_ms", entry.DurationMS),
	)
	return nil
}
