package router

import (
	"context"
	"fmt"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/llm"
)

// LLMOnlyExecutor answers llm_only profile turns with a single model call.
// Profiles that need real plan execution (tool_enabled, rag_focused) belong
// to the external plan service and are rejected here.
type LLMOnlyExecutor struct {
	cfg       *config.Config
	providers *providerCache
}

func NewLLMOnlyExecutor(cfg *config.Config, factory ProviderFactory) *LLMOnlyExecutor {
	return &LLMOnlyExecutor{cfg: cfg, providers: newProviderCache(factory)}
}

func (e *LLMOnlyExecutor) ExecuteTurn(ctx context.Context, profile *config.Profile, query string, history []llm.Message, sink events.Sink) (*PlanResult, error) {
	if profile.Type != config.TypeLLMOnly {
		return nil, fmt.Errorf("profile type '%s' requires an external plan executor", profile.Type)
	}

	modelCfg, actualModel, err := config.ResolveModelKey(e.cfg.Models, profile.Model)
	if err != nil {
		return nil, err
	}
	provider, err := e.providers.get(ctx, modelCfg)
	if err != nil {
		return nil, err
	}

	session := llm.NewSession(provider, actualModel, 0.7)
	if profile.Description != "" {
		session.AddSystemPrompt(profile.Description)
	}
	session.SeedHistory(history)

	resp, err := session.Send(ctx, query)
	if err != nil {
		return nil, err
	}

	sink.Emit(events.New(events.TypeLLMStep, map[string]any{
		"step":          1,
		"kind":          "synthesis",
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}))

	return &PlanResult{
		Response:     resp.Content,
		Success:      true,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
