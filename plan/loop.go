package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/llm"
	"github.com/rgeissen/uderia-sub003/tools"
)

// HallucinatedLoop recovers phases whose loop_over list holds raw
// natural-language strings instead of real argument values. A lone
// temporal item goes straight to the date-range path; anything else costs
// one LLM call to name the argument the items stand for.
type HallucinatedLoop struct {
	Invoker   tools.Invoker
	LLM       llm.Caller
	DateRange *DateRange
	Sink      events.Sink
	Logger    hclog.Logger
	State     *WorkflowState

	Temperature float64
}

func (o *HallucinatedLoop) sink() events.Sink {
	if o.Sink == nil {
		return events.Discard
	}
	return o.Sink
}

// Run expands the loop into per-item tool invocations and returns the
// consolidated ordered results.
func (o *HallucinatedLoop) Run(ctx context.Context, phase Phase) ([]*tools.Result, error) {
	if len(phase.LoopOver) == 0 {
		return nil, &HallucinationError{Phase: phase.Index, Reason: "loop recovery invoked without loop items"}
	}

	if len(phase.LoopOver) == 1 && LooksTemporal(phase.LoopOver[0]) {
		o.sink().Emit(events.New(events.TypePlanOptimization, map[string]any{
			"phase":  phase.Index,
			"tool":   phase.Tool,
			"reason": fmt.Sprintf("loop item %q is a date phrase, delegating to date-range expansion", phase.LoopOver[0]),
		}))
		delegated := phase
		delegated.RangeHint = phase.LoopOver[0]
		delegated.LoopOver = nil
		return o.DateRange.Run(ctx, delegated)
	}

	argName, err := o.discoverArgName(ctx, phase)
	if err != nil {
		return nil, err
	}

	o.sink().Emit(events.New(events.TypeSystemCorrection, map[string]any{
		"phase":      phase.Index,
		"tool":       phase.Tool,
		"correction": fmt.Sprintf("mapping %d loop items onto argument %q", len(phase.LoopOver), argName),
	}))

	var consolidated []*tools.Result
	for _, item := range phase.LoopOver {
		args := make(map[string]any, len(phase.Args)+1)
		for k, v := range phase.Args {
			args[k] = v
		}
		args[argName] = item

		result, err := o.Invoker.Invoke(ctx, phase.Tool, args)
		if err != nil {
			return nil, fmt.Errorf("invoke %s for item %q: %w", phase.Tool, item, err)
		}
		o.State.AppendTrace(phase.Tool, args, result)
		consolidated = append(consolidated, result)
	}

	if err := o.State.Publish(phase.Index, consolidated); err != nil {
		return nil, err
	}
	return consolidated, nil
}

// discoverArgName asks the model which tool argument the loop items
// represent. A refusal is fatal to the phase.
func (o *HallucinatedLoop) discoverArgName(ctx context.Context, phase Phase) (string, error) {
	prompt := fmt.Sprintf(
		"Tool %q is being called once per item of this list: %s. "+
			"Which single argument name of the tool do these items represent? "+
			`Respond with only a JSON object of the form {"argument_name": "..."} `+
			`or {"argument_name": null} if no single argument fits.`,
		phase.Tool, strings.Join(phase.LoopOver, "; "))

	completion, err := o.LLM.Call(ctx, prompt,
		"You map loop items onto tool argument names. Respond with strict JSON only.",
		o.Temperature)
	if err != nil {
		return "", fmt.Errorf("loop argument discovery: %w", err)
	}

	raw, ok := extractJSONObject(completion.Text)
	if !ok {
		return "", &HallucinationError{
			Phase:  phase.Index,
			Reason: "loop argument discovery returned no JSON object",
		}
	}

	var answer struct {
		ArgumentName *string `json:"argument_name"`
	}
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return "", &HallucinationError{
			Phase:  phase.Index,
			Reason: "loop argument discovery returned malformed JSON",
		}
	}
	if answer.ArgumentName == nil || strings.TrimSpace(*answer.ArgumentName) == "" {
		return "", &HallucinationError{
			Phase:  phase.Index,
			Reason: fmt.Sprintf("no tool argument maps onto loop items %v", phase.LoopOver),
		}
	}
	return strings.TrimSpace(*answer.ArgumentName), nil
}
