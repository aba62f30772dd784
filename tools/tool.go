// Package tools defines the tool surface shared by the coordination engine
// and the plan-repair orchestrators: the Tool interface the LLM loop
// dispatches on, its payload schema, and the Invoker through which plan
// phases execute real tool calls.
package tools

// Tool is an invocable capability exposed to an LLM-driven loop.
type Tool interface {
	// ToolName returns the dispatch name of the tool.
	ToolName() string

	// ToolDescription returns a description of what the tool does.
	ToolDescription() string

	// ToolPayloadSchema returns the JSON schema for the tool's input.
	ToolPayloadSchema() Schema

	// Call executes the tool with a JSON payload and returns a
	// stringified response. Failures are returned as text, not errors:
	// the calling LLM is expected to see and react to them.
	Call(params string) string
}

// Registry is an ordered set of tools keyed by name.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	name := t.ToolName()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
