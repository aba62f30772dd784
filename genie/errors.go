package genie

import "fmt"

// ConfigurationError means a genie profile cannot be coordinated at all:
// no LLM configured, or an empty slave-profile list. Fatal to the turn;
// no remote calls are made.
type ConfigurationError struct {
	Profile string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("genie profile %q misconfigured: %s", e.Profile, e.Reason)
}

// DepthExceededError is the nesting guard rejecting a coordinator
// construction. Fatal; no slave sessions are created.
type DepthExceededError struct {
	Level    int
	MaxDepth int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("genie nesting level %d exceeds maximum depth %d", e.Level, e.MaxDepth)
}
