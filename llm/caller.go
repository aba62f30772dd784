package llm

import "context"

// Completion is the result of a single free-standing LLM call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Caller is the minimal LLM capability consumed by the plan orchestrators:
// one prompt, one system prompt, one temperature, no conversation state.
type Caller interface {
	Call(ctx context.Context, prompt, systemPrompt string, temperature float64) (*Completion, error)
}

// ProviderCaller adapts a Provider and model name to the Caller interface.
type ProviderCaller struct {
	Provider Provider
	Model    string
}

func (c *ProviderCaller) Call(ctx context.Context, prompt, systemPrompt string, temperature float64) (*Completion, error) {
	msgs := []Message{}
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	resp, err := c.Provider.Chat(ctx, &ChatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	return &Completion{
		Text:         resp.Content,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
