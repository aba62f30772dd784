package llm

import "context"

// Session holds a conversation with one model: system prompts, ordered
// message history and a sampling temperature. Not safe for concurrent use;
// a session belongs to a single coordination loop.
type Session struct {
	provider      Provider
	model         string
	temperature   float64
	systemPrompts []string
	messages      []Message
}

func NewSession(provider Provider, model string, temperature float64, systemPrompts ...string) *Session {
	return &Session{
		provider:      provider,
		model:         model,
		temperature:   temperature,
		systemPrompts: systemPrompts,
		messages:      []Message{},
	}
}

func (s *Session) AddSystemPrompt(prompt string) {
	s.systemPrompts = append(s.systemPrompts, prompt)
}

// SeedHistory prepends prior conversation turns, e.g. when resuming a
// persisted session. Must be called before the first Send.
func (s *Session) SeedHistory(history []Message) {
	s.messages = append(s.messages, history...)
}

// History returns the message history. The returned slice shares the
// underlying array — do not modify.
func (s *Session) History() []Message {
	return s.messages
}

func (s *Session) buildMessages(userMessage string) []Message {
	var msgs []Message
	for _, sp := range s.systemPrompts {
		msgs = append(msgs, Message{Role: RoleSystem, Content: sp})
	}
	msgs = append(msgs, s.messages...)
	msgs = append(msgs, NewTextMessage(RoleUser, userMessage))
	return msgs
}

// Send submits a user message and appends both it and the assistant
// response to the history.
func (s *Session) Send(ctx context.Context, userMessage string) (*ChatResponse, error) {
	req := &ChatRequest{
		Model:       s.model,
		Messages:    s.buildMessages(userMessage),
		Temperature: s.temperature,
	}

	resp, err := s.provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	s.messages = append(s.messages, NewTextMessage(RoleUser, userMessage))
	s.messages = append(s.messages, NewTextMessage(RoleAssistant, resp.Content))

	return resp, nil
}
