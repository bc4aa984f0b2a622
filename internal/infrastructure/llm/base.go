package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Doer is the transport fetch primitive injected into adapters. Tests
// substitute a fake; production uses a tuned *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy bounds the shared retry behavior of all adapters.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first
	InitialDelay   time.Duration // wait before the second attempt
	Multiplier     float64       // backoff growth factor
	AttemptTimeout time.Duration // per-attempt deadline
}

// DefaultRetryPolicy returns production defaults: 3 attempts, 2s base
// delay doubling each retry, 90s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: 90 * time.Second,
	}
}

// AdapterConfig configures a concrete adapter.
type AdapterConfig struct {
	BaseURL string
	APIKey  string
	Client  Doer // nil = default tuned http.Client
	Retry   RetryPolicy
}

// NewHTTPClient builds the default transport used when no Doer is
// injected.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Transport: transport}
}

// BaseAdapter carries the behavior shared by all provider adapters:
// bounded retry with exponential backoff, a per-attempt timeout, a
// per-provider circuit breaker, and cost computation. Concrete adapters
// embed it and add only wire mapping.
type BaseAdapter struct {
	client  Doer
	retry   RetryPolicy
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewBaseAdapter creates the shared adapter core.
func NewBaseAdapter(cfg AdapterConfig, logger *zap.Logger) *BaseAdapter {
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient()
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	if retry.Multiplier <= 1 {
		retry.Multiplier = 2.0
	}
	if retry.AttemptTimeout <= 0 {
		retry.AttemptTimeout = 90 * time.Second
	}

	return &BaseAdapter{
		client:  client,
		retry:   retry,
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

// DoJSON posts a JSON body and returns the response bytes, retrying
// transient failures with exponential backoff. Non-success statuses,
// exhausted retries and timeouts all come back as plain errors; the
// pipeline wraps them into ADAPTER_ERROR.
func (b *BaseAdapter) DoJSON(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	if !b.breaker.Allow() {
		return nil, fmt.Errorf("provider circuit open, refusing call to %s", url)
	}

	var lastErr error
	delay := b.retry.InitialDelay

	for attempt := 0; attempt < b.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			b.logger.Info("Retrying provider call",
				zap.Int("attempt", attempt),
				zap.Duration("wait", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				b.breaker.RecordFailure()
				return nil, ctx.Err()
			}
			delay = time.Duration(float64(delay) * b.retry.Multiplier)
		}

		respBody, err := b.doOnce(ctx, method, url, headers, body)
		if err == nil {
			b.breaker.RecordSuccess()
			return respBody, nil
		}

		lastErr = err
		if !isRetryable(err) {
			b.breaker.RecordFailure()
			return nil, err
		}
	}

	b.breaker.RecordFailure()
	return nil, fmt.Errorf("provider call failed after %d attempts: %w", b.retry.MaxAttempts, lastErr)
}

func (b *BaseAdapter) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.retry.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// isRetryable classifies transport errors. Auth and bad-request failures
// never retry; timeouts, resets and server-side overload do.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	nonRetryable := []string{
		"context canceled",
		"unauthorized",
		"invalid api key",
		"bad request",
		"invalid argument",
		"model not found",
		"api error 400",
		"api error 401",
		"api error 403",
		"api error 404",
	}
	for _, pattern := range nonRetryable {
		if strings.Contains(msg, pattern) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"eof",
		"api error 5",
		"api error 429",
		"rate limit",
		"too many requests",
		"overloaded",
		"temporarily unavailable",
	}
	for _, pattern := range retryable {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	// Unknown errors retry; the attempt bound keeps this safe.
	return true
}

// CalculateCost prices a call in USD: token counts divided by 1M,
// multiplied by the per-million rates, rounded to six decimal places.
func CalculateCost(inputTokens, outputTokens int, inputRate, outputRate float64) float64 {
	cost := float64(inputTokens)/1_000_000*inputRate + float64(outputTokens)/1_000_000*outputRate
	return math.Round(cost*1e6) / 1e6
}
