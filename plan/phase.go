// Package plan contains the deterministic correction layer that repairs
// structurally unsound plan phases before any real tool call is made:
// date-range expansion, per-column iteration, and recovery from
// hallucinated loops. Orchestrators consume one malformed phase and a
// tool invoker and produce a consolidated, ordered result list published
// into the per-turn workflow state.
package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Phase is one step of a multi-step execution plan produced by an upstream
// planner. Argument values may be literals, placeholders referencing a
// prior phase's output, or accompanied by a LoopOver list of raw items.
type Phase struct {
	Index    int
	Tool     string
	Args     map[string]any
	LoopOver []string

	// RangeHint carries an externally supplied temporal phrase, e.g. the
	// single loop item a hallucinated-loop recovery delegated here. It is
	// the only input the natural-language range path accepts; a phrase
	// inside Args is always a guard violation.
	RangeHint string
}

// Placeholder is an unresolved reference to a prior phase's output.
type Placeholder struct {
	Source string
	Key    string
}

// AsPlaceholder reports whether an argument value is a source/key
// placeholder dict that survived resolution.
func AsPlaceholder(v any) (Placeholder, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Placeholder{}, false
	}
	source, hasSource := m["source"].(string)
	key, hasKey := m["key"].(string)
	if !hasSource && !hasKey {
		return Placeholder{}, false
	}
	return Placeholder{Source: source, Key: key}, true
}

var temporalPhraseRe = regexp.MustCompile(
	`(?i)^\s*(?:(?:past|last|next)\s+\d+\s+(?:day|week|month|year)s?|yesterday|today|tomorrow)\s*$`)

// IsTemporalPhrase reports whether s is a relative date phrase such as
// "past 3 days" or "yesterday" rather than a concrete date.
func IsTemporalPhrase(s string) bool {
	return temporalPhraseRe.MatchString(s)
}

var temporalKeywords = []string{"day", "week", "month", "year", "past", "last", "next"}

// LooksTemporal is the looser keyword match used to spot date-like loop
// items that deserve the dedicated range path.
func LooksTemporal(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range temporalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsISODate reports whether s is a concrete YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return err == nil
}

// PhaseResultKey names the workflow-state slot for a phase's output.
func PhaseResultKey(index int) string {
	return fmt.Sprintf("result_of_phase_%d", index)
}

// ParsePhaseRef extracts the phase number from a "result_of_phase_N"
// reference string.
func ParsePhaseRef(s string) (int, bool) {
	const prefix = "result_of_phase_"
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// isDateArg reports whether an argument name is date-valued by convention.
func isDateArg(name string) bool {
	return strings.Contains(strings.ToLower(name), "date")
}

// dateArg locates the date-valued argument of a phase, if any.
func dateArg(args map[string]any) (string, any, bool) {
	// Prefer the plain "date" key when present so multi-argument tools
	// resolve deterministically.
	if v, ok := args["date"]; ok {
		return "date", v, true
	}
	for name, v := range args {
		if isDateArg(name) {
			return name, v, true
		}
	}
	return "", nil, false
}

// stripDateArgs copies args without any date-named keys. The expansion
// loop supplies its own per-day value.
func stripDateArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for name, v := range args {
		if isDateArg(name) {
			continue
		}
		out[name] = v
	}
	return out
}
