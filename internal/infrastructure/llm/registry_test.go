package llm

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	apperrors "github.com/guardgate/guardgate/gateway/pkg/errors"
)

type nopAdapter struct{}

func (nopAdapter) TransformRequest(req *entity.Request) (interface{}, error) { return req, nil }
func (nopAdapter) Execute(ctx context.Context, providerReq interface{}) (interface{}, error) {
	return []byte("{}"), nil
}
func (nopAdapter) TransformResponse(raw interface{}, requestID string) interface{} { return nil }
func (nopAdapter) ValidateCapabilities(model string, capability service.Capability) bool {
	return true
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry([]entity.Provider{entity.ProviderAnthropic}, zap.NewNop())
	registry.Register(entity.ProviderAnthropic, nopAdapter{})
	registry.Register(entity.ProviderOpenAI, nopAdapter{})

	if _, err := registry.Resolve(entity.ProviderAnthropic); err != nil {
		t.Fatalf("allowed provider failed to resolve: %v", err)
	}

	// Registered but not allow-listed.
	_, err := registry.Resolve(entity.ProviderOpenAI)
	if err == nil {
		t.Fatal("unlisted provider resolved")
	}
	if !apperrors.IsProviderNotAllowed(err) {
		t.Errorf("error code = %s, want PROVIDER_NOT_ALLOWED", apperrors.CodeOf(err))
	}

	// Allow-listed but never registered.
	empty := NewRegistry([]entity.Provider{entity.ProviderOllama}, zap.NewNop())
	_, err = empty.Resolve(entity.ProviderOllama)
	if err == nil {
		t.Fatal("unregistered provider resolved")
	}
	if !apperrors.IsProviderNotAllowed(err) {
		t.Errorf("error code = %s, want PROVIDER_NOT_ALLOWED", apperrors.CodeOf(err))
	}
}

func TestRegistry_Providers(t *testing.T) {
	registry := NewRegistry([]entity.Provider{entity.ProviderAnthropic}, zap.NewNop())
	registry.Register(entity.ProviderAnthropic, nopAdapter{})
	registry.Register(entity.ProviderOpenAI, nopAdapter{}) // unreachable: not allow-listed

	providers := registry.Providers()
	if len(providers) != 1 || providers[0] != entity.ProviderAnthropic {
		t.Errorf("Providers = %v", providers)
	}
}
