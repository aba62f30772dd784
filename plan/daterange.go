package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/llm"
	"github.com/rgeissen/uderia-sub003/tools"
)

const currentDateTool = "get_current_date"

// maxRangeDays caps a converted range so a misparsed phrase cannot fan out
// into thousands of tool calls.
const maxRangeDays = 366

// DateRange expands a single-date tool call across a date range. The
// cheapest viable path wins: pre-calculated dates from a prior phase are
// reused without an LLM call, a single concrete date short-circuits to one
// direct invocation, and only a genuine natural-language range pays for a
// conversion call.
type DateRange struct {
	Invoker tools.Invoker
	LLM     llm.Caller
	Sink    events.Sink
	Logger  hclog.Logger
	State   *WorkflowState

	// Temperature for the range-conversion call. Zero keeps the
	// conversion deterministic.
	Temperature float64
}

func (o *DateRange) sink() events.Sink {
	if o.Sink == nil {
		return events.Discard
	}
	return o.Sink
}

func (o *DateRange) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// Run executes the decision tree for one phase and returns the
// consolidated per-day results in ascending date order.
func (o *DateRange) Run(ctx context.Context, phase Phase) ([]*tools.Result, error) {
	argName, argValue, hasDateArg := dateArg(phase.Args)

	if hasDateArg {
		// Path 1: the argument references a prior phase whose output is
		// already a list of date records.
		if ref, ok := argValue.(string); ok {
			if _, isRef := ParsePhaseRef(ref); isRef {
				dates, ok := o.precalculatedDates(ref)
				if !ok {
					// Path 2: the reference names a phase whose output is
					// missing or carries no date records. Abort before any
					// tool call rather than pass the raw reference through.
					return nil, &HallucinationError{
						Phase:  phase.Index,
						Reason: fmt.Sprintf("argument %q references %s but no usable date records were published", argName, ref),
					}
				}
				o.sink().Emit(events.New(events.TypePlanOptimization, map[string]any{
					"phase":  phase.Index,
					"tool":   phase.Tool,
					"reason": fmt.Sprintf("reusing %d pre-calculated dates from %s", len(dates), ref),
				}))
				return o.expand(ctx, phase, argName, dates)
			}
		}
		if ph, ok := AsPlaceholder(argValue); ok {
			if dates, ok := o.precalculatedDates(ph.Source); ok {
				o.sink().Emit(events.New(events.TypePlanOptimization, map[string]any{
					"phase":  phase.Index,
					"tool":   phase.Tool,
					"reason": fmt.Sprintf("reusing %d pre-calculated dates from %s", len(dates), ph.Source),
				}))
				return o.expand(ctx, phase, argName, dates)
			}
			// Path 2: unresolved placeholder, abort before any tool call.
			return nil, &HallucinationError{
				Phase:  phase.Index,
				Reason: fmt.Sprintf("argument %q is an unresolved placeholder (source=%q key=%q)", argName, ph.Source, ph.Key),
			}
		}
		if s, ok := argValue.(string); ok {
			// Path 3: a temporal phrase survived planning inside the
			// arguments, abort before any tool call.
			if IsTemporalPhrase(s) {
				return nil, &HallucinationError{
					Phase:  phase.Index,
					Reason: fmt.Sprintf("argument %q holds unconverted temporal phrase %q", argName, s),
				}
			}
			// Path 4: a single concrete date never enters the range
			// machinery.
			if IsISODate(s) {
				return o.invokeOnce(ctx, phase)
			}
		}
	}

	// Path 5: natural-language range conversion.
	if phase.RangeHint != "" {
		if argName == "" {
			argName = "date"
		}
		dates, err := o.convertPhrase(ctx, phase)
		if err != nil {
			return nil, err
		}
		return o.expand(ctx, phase, argName, dates)
	}

	// Nothing range shaped about this phase after all.
	return o.invokeOnce(ctx, phase)
}

// precalculatedDates reads a prior phase's output and returns its dates if
// every record carries one.
func (o *DateRange) precalculatedDates(ref string) ([]string, bool) {
	if o.State == nil {
		return nil, false
	}
	if _, ok := ParsePhaseRef(ref); !ok {
		return nil, false
	}
	results, ok := o.State.Results(ref)
	if !ok || len(results) == 0 {
		return nil, false
	}

	var dates []string
	for _, r := range results {
		record, ok := r.Data.(map[string]any)
		if !ok {
			return nil, false
		}
		date, ok := record["date"].(string)
		if !ok || !IsISODate(date) {
			return nil, false
		}
		dates = append(dates, date)
	}
	return dates, true
}

// convertPhrase turns the range hint into a daily date list: one tool call
// for the current date, one LLM call for the boundaries, then a
// deterministic expansion.
func (o *DateRange) convertPhrase(ctx context.Context, phase Phase) ([]string, error) {
	today, err := o.fetchCurrentDate(ctx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"The current date is %s. Convert the phrase %q into an inclusive date range. "+
			`Respond with only a JSON object of the form {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}.`,
		today, phase.RangeHint)

	completion, err := o.LLM.Call(ctx, prompt,
		"You convert natural-language date phrases into exact ISO date ranges. Respond with strict JSON only.",
		o.Temperature)
	if err != nil {
		return nil, fmt.Errorf("date range conversion: %w", err)
	}

	raw, ok := extractJSONObject(completion.Text)
	if !ok {
		return nil, &HallucinationError{
			Phase:  phase.Index,
			Reason: fmt.Sprintf("range conversion for %q returned no JSON object", phase.RangeHint),
		}
	}

	var bounds struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal([]byte(raw), &bounds); err != nil || !IsISODate(bounds.StartDate) || !IsISODate(bounds.EndDate) {
		return nil, &HallucinationError{
			Phase:  phase.Index,
			Reason: fmt.Sprintf("range conversion for %q returned malformed boundaries", phase.RangeHint),
		}
	}

	dates, err := expandDaily(bounds.StartDate, bounds.EndDate)
	if err != nil {
		return nil, &HallucinationError{Phase: phase.Index, Reason: err.Error()}
	}

	o.sink().Emit(events.New(events.TypeSystemCorrection, map[string]any{
		"phase":      phase.Index,
		"tool":       phase.Tool,
		"correction": fmt.Sprintf("converted %q into %d daily invocations (%s to %s)", phase.RangeHint, len(dates), bounds.StartDate, bounds.EndDate),
	}))

	return dates, nil
}

func (o *DateRange) fetchCurrentDate(ctx context.Context) (string, error) {
	result, err := o.Invoker.Invoke(ctx, currentDateTool, nil)
	if err != nil {
		return "", fmt.Errorf("fetch current date: %w", err)
	}
	if record, ok := result.Data.(map[string]any); ok {
		if date, ok := record["current_date"].(string); ok && IsISODate(date) {
			return date, nil
		}
		if date, ok := record["date"].(string); ok && IsISODate(date) {
			return date, nil
		}
	}
	if date, ok := result.Data.(string); ok && IsISODate(date) {
		return date, nil
	}
	return "", fmt.Errorf("fetch current date: tool %q returned no usable date", currentDateTool)
}

// expand invokes the base tool once per date, in order, accumulating
// successful results. Per-day failures are traced but do not abort the
// remaining days.
func (o *DateRange) expand(ctx context.Context, phase Phase, argName string, dates []string) ([]*tools.Result, error) {
	base := stripDateArgs(phase.Args)

	o.sink().Emit(events.New(events.TypeStatusIndicatorUpdate, map[string]any{
		"phase":  phase.Index,
		"status": fmt.Sprintf("Running %s across %d days", phase.Tool, len(dates)),
	}))

	var consolidated []*tools.Result
	for _, date := range dates {
		args := make(map[string]any, len(base)+1)
		for k, v := range base {
			args[k] = v
		}
		args[argName] = date

		result, err := o.Invoker.Invoke(ctx, phase.Tool, args)
		if err != nil {
			return nil, fmt.Errorf("invoke %s for %s: %w", phase.Tool, date, err)
		}
		o.State.AppendTrace(phase.Tool, args, result)
		if result.OK() {
			consolidated = append(consolidated, result)
		} else {
			o.logger().Warn("day-level invocation failed", "tool", phase.Tool, "date", date, "error", result.Error)
		}
	}

	if err := o.State.Publish(phase.Index, consolidated); err != nil {
		return nil, err
	}
	return consolidated, nil
}

// invokeOnce is the single-date escape hatch.
func (o *DateRange) invokeOnce(ctx context.Context, phase Phase) ([]*tools.Result, error) {
	result, err := o.Invoker.Invoke(ctx, phase.Tool, phase.Args)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", phase.Tool, err)
	}
	o.State.AppendTrace(phase.Tool, phase.Args, result)

	consolidated := []*tools.Result{result}
	if err := o.State.Publish(phase.Index, consolidated); err != nil {
		return nil, err
	}
	return consolidated, nil
}

// expandDaily lists every date from start to end inclusive.
func expandDaily(start, end string) ([]string, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, err
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		from, to = to, from
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("date range %s to %s exceeds %d days", start, end, maxRangeDays)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}
