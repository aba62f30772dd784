package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/llm"
)

// ProviderFactory builds an llm.Provider for a model config. The router
// uses one factory for all profiles so tests can substitute a scripted
// provider.
type ProviderFactory func(ctx context.Context, m *config.Model) (llm.Provider, error)

// DefaultProviderFactory constructs the real provider clients.
func DefaultProviderFactory(ctx context.Context, m *config.Model) (llm.Provider, error) {
	switch m.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicProvider(m.APIKey), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(m.APIKey), nil
	case config.ProviderGemini:
		return llm.NewGeminiProvider(ctx, m.APIKey)
	default:
		return nil, fmt.Errorf("unsupported provider '%s'", m.Provider)
	}
}

// providerCache memoizes providers per model config name so repeated turns
// share HTTP clients.
type providerCache struct {
	mu      sync.Mutex
	factory ProviderFactory
	byName  map[string]llm.Provider
}

func newProviderCache(factory ProviderFactory) *providerCache {
	if factory == nil {
		factory = DefaultProviderFactory
	}
	return &providerCache{factory: factory, byName: make(map[string]llm.Provider)}
}

func (pc *providerCache) get(ctx context.Context, m *config.Model) (llm.Provider, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if p, ok := pc.byName[m.Name]; ok {
		return p, nil
	}
	p, err := pc.factory(ctx, m)
	if err != nil {
		return nil, err
	}
	pc.byName[m.Name] = p
	return p, nil
}
