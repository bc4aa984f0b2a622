package llm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	apperrors "github.com/guardgate/guardgate/gateway/pkg/errors"
)

// Registry resolves provider tags to adapters, gated by the policy
// allow-list. Registration happens during startup; Resolve is read-only
// and concurrent-safe afterwards.
type Registry struct {
	mu       sync.RWMutex
	allowed  map[entity.Provider]bool
	adapters map[entity.Provider]service.Adapter
	logger   *zap.Logger
}

// NewRegistry creates a registry gated by the given allow-list.
func NewRegistry(allowedProviders []entity.Provider, logger *zap.Logger) *Registry {
	allowed := make(map[entity.Provider]bool, len(allowedProviders))
	for _, p := range allowedProviders {
		allowed[p] = true
	}
	return &Registry{
		allowed:  allowed,
		adapters: make(map[entity.Provider]service.Adapter),
		logger:   logger,
	}
}

// Register installs an adapter for a provider tag. Registering a tag
// outside the allow-list is permitted but the adapter stays unreachable.
func (r *Registry) Register(tag entity.Provider, adapter service.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[tag] = adapter
	r.logger.Info("Adapter registered",
		zap.String("provider", string(tag)),
		zap.Bool("allowed", r.allowed[tag]),
	)
}

// Resolve returns the adapter for a provider tag. Unlisted and
// unregistered tags both fail with PROVIDER_NOT_ALLOWED.
func (r *Registry) Resolve(tag entity.Provider) (service.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.allowed[tag] {
		return nil, apperrors.NewProviderNotAllowedError(
			fmt.Sprintf("provider %q is not on the allow-list", tag),
			map[string]interface{}{
				"provider":          string(tag),
				"allowed_providers": r.allowList(),
			},
		)
	}

	adapter, ok := r.adapters[tag]
	if !ok {
		return nil, apperrors.NewProviderNotAllowedError(
			fmt.Sprintf("no registered adapter for provider %q", tag),
			map[string]interface{}{
				"provider": string(tag),
			},
		)
	}

	return adapter, nil
}

// Providers lists the allow-listed tags that have a registered adapter.
func (r *Registry) Providers() []entity.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Provider, 0, len(r.adapters))
	for tag := range r.adapters {
		if r.allowed[tag] {
			out = append(out, tag)
		}
	}
	return out
}

func (r *Registry) allowList() []string {
	out := make([]string, 0, len(r.allowed))
	for tag := range r.allowed {
		out = append(out, string(tag))
	}
	return out
}
