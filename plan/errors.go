package plan

import "fmt"

// HallucinationError marks a phase the planner produced on bad structure:
// an unresolved placeholder, an unconverted temporal phrase, or a loop with
// no nameable tool argument. It is fatal to the phase and forces the plan
// executor to re-plan rather than proceed on bad data.
type HallucinationError struct {
	Phase  int
	Reason string
}

func (e *HallucinationError) Error() string {
	return fmt.Sprintf("phase %d cannot be executed as planned: %s", e.Phase, e.Reason)
}
