package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeDoer replays a scripted sequence of responses.
type fakeDoer struct {
	statuses []int
	bodies   []string
	calls    int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	body := "{}"
	if i < len(f.bodies) {
		body = f.bodies[i]
	}
	return &http.Response{
		StatusCode: f.statuses[i],
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}, nil
}

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		Multiplier:     2.0,
		AttemptTimeout: time.Second,
	}
}

func TestDoJSON_SucceedsFirstAttempt(t *testing.T) {
	doer := &fakeDoer{statuses: []int{200}, bodies: []string{`{"ok":true}`}}
	base := NewBaseAdapter(AdapterConfig{Client: doer, Retry: fastRetry()}, zap.NewNop())

	body, err := base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
	if doer.calls != 1 {
		t.Errorf("calls = %d, want 1", doer.calls)
	}
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	doer := &fakeDoer{statuses: []int{500, 503, 200}, bodies: []string{"", "", `{"ok":true}`}}
	base := NewBaseAdapter(AdapterConfig{Client: doer, Retry: fastRetry()}, zap.NewNop())

	body, err := base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
	if doer.calls != 3 {
		t.Errorf("calls = %d, want 3", doer.calls)
	}
}

func TestDoJSON_ExhaustsRetries(t *testing.T) {
	doer := &fakeDoer{statuses: []int{500}}
	base := NewBaseAdapter(AdapterConfig{Client: doer, Retry: fastRetry()}, zap.NewNop())

	_, err := base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if doer.calls != 3 {
		t.Errorf("calls = %d, want 3", doer.calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("err = %v", err)
	}
}

func TestDoJSON_DoesNotRetryClientErrors(t *testing.T) {
	doer := &fakeDoer{statuses: []int{401}, bodies: []string{`{"error":"bad key"}`}}
	base := NewBaseAdapter(AdapterConfig{Client: doer, Retry: fastRetry()}, zap.NewNop())

	_, err := base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if doer.calls != 1 {
		t.Errorf("calls = %d, want 1 (401 must not retry)", doer.calls)
	}
}

func TestDoJSON_OpenBreakerRefusesCalls(t *testing.T) {
	doer := &fakeDoer{statuses: []int{400}}
	base := NewBaseAdapter(AdapterConfig{Client: doer, Retry: fastRetry()}, zap.NewNop())

	// Trip the breaker with consecutive non-retryable failures.
	for i := 0; i < 5; i++ {
		base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	}
	callsBefore := doer.calls

	_, err := base.DoJSON(context.Background(), "POST", "http://example.test/v1", nil, []byte("{}"))
	if err == nil || !strings.Contains(err.Error(), "circuit open") {
		t.Fatalf("err = %v, want circuit open", err)
	}
	if doer.calls != callsBefore {
		t.Error("open breaker must not touch the transport")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"provider API error 500: upstream broke", true},
		{"provider API error 429: rate limit", true},
		{"dial tcp: i/o timeout", true},
		{"connection reset by peer", true},
		{"provider API error 400: bad request", false},
		{"provider API error 401: unauthorized", false},
		{"provider API error 404: model not found", false},
		{"context canceled", false},
		{"something completely new", true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := &testError{tt.msg}
			if got := isRetryable(err); got != tt.want {
				t.Errorf("isRetryable(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name            string
		input, output   int
		inRate, outRate float64
		want            float64
	}{
		{"zero usage", 0, 0, 3.0, 15.0, 0},
		{"sonnet-style rates", 1000, 500, 3.0, 15.0, 0.0105},
		{"rounds to six decimals", 1, 1, 3.0, 15.0, 0.000018},
		{"million tokens", 1_000_000, 0, 3.0, 15.0, 3.0},
		{"free local model", 1000, 1000, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.input, tt.output, tt.inRate, tt.outRate)
			if got != tt.want {
				t.Errorf("CalculateCost = %v, want %v", got, tt.want)
			}
		})
	}
}
