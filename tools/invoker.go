package tools

import "context"

// ResultStatus classifies a tool invocation outcome.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusPartial ResultStatus = "partial"
	StatusFailure ResultStatus = "failure"
)

// Result is the payload returned by an Invoker call.
type Result struct {
	Status ResultStatus   `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// OK reports whether the invocation succeeded (fully or partially).
func (r *Result) OK() bool {
	return r != nil && (r.Status == StatusSuccess || r.Status == StatusPartial)
}

// Invoker executes a named tool with structured arguments. It is the plan
// layer's collaborator for real tool calls; implementations may dispatch to
// remote services or locally hosted plugins. A non-nil error means the call
// could not be issued at all — tool-level failures come back as a Result
// with StatusFailure.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, tool string, args map[string]any) (*Result, error)

func (f InvokerFunc) Invoke(ctx context.Context, tool string, args map[string]any) (*Result, error) {
	return f(ctx, tool, args)
}
