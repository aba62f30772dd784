package config

import "fmt"

// ProfileType classifies what a profile does with a user query.
type ProfileType string

const (
	// TypeToolEnabled answers with direct tool-calling plan execution.
	TypeToolEnabled ProfileType = "tool_enabled"
	// TypeLLMOnly answers from the model alone.
	TypeLLMOnly ProfileType = "llm_only"
	// TypeRAGFocused answers with retrieval-augmented context.
	TypeRAGFocused ProfileType = "rag_focused"
	// TypeGenie coordinates other profiles instead of answering directly.
	TypeGenie ProfileType = "genie"
)

var profileTypes = map[ProfileType]bool{
	TypeToolEnabled: true,
	TypeLLMOnly:     true,
	TypeRAGFocused:  true,
	TypeGenie:       true,
}

// GenieConfig tunes a genie profile's coordination loop.
type GenieConfig struct {
	Temperature         float64 `hcl:"temperature,optional"`
	QueryTimeoutSeconds int     `hcl:"query_timeout_seconds,optional"`
	MaxIterations       int     `hcl:"max_iterations,optional"`
	MaxNestingDepth     int     `hcl:"max_nesting_depth,optional"`
	PollIntervalSeconds int     `hcl:"poll_interval_seconds,optional"`
	MaxPolls            int     `hcl:"max_polls,optional"`
}

// Profile represents an agent profile configuration. Genie profiles carry
// an ordered slave list and a genie block; the order is the order experts
// are presented to the coordinating model.
type Profile struct {
	Name        string      `hcl:"name,label"`
	Tag         string      `hcl:"tag"`
	DisplayName string      `hcl:"display_name,optional"`
	Description string      `hcl:"description,optional"`
	Type        ProfileType `hcl:"type"`
	Model       string      `hcl:"model"`
	Slaves      []string    `hcl:"slaves,optional"`

	Genie *GenieConfig `hcl:"genie,block"`
}

func (p *Profile) Validate() error {
	if p.Tag == "" {
		return fmt.Errorf("profile '%s': tag is required", p.Name)
	}
	if !profileTypes[p.Type] {
		return fmt.Errorf("profile '%s': unknown type '%s'", p.Name, p.Type)
	}
	if p.Type == TypeGenie && len(p.Slaves) == 0 {
		return fmt.Errorf("profile '%s': genie profiles require at least one slave", p.Name)
	}
	if p.Type != TypeGenie && len(p.Slaves) > 0 {
		return fmt.Errorf("profile '%s': only genie profiles may list slaves", p.Name)
	}
	if p.Type != TypeGenie && p.Genie != nil {
		return fmt.Errorf("profile '%s': only genie profiles may carry a genie block", p.Name)
	}
	return nil
}
