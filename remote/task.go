package remote

// TaskStatus is the state of an asynchronous remote task.
type TaskStatus struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// resultFields are the known names carrying the final text of a completed
// task, checked in order; the first non-empty one wins.
var resultFields = []string{"final_response", "final_answer", "final_answer_text"}

// Terminal reports whether the task has finished, successfully or not.
func (t *TaskStatus) Terminal() bool {
	switch t.Status {
	case "completed", "complete", "failed", "error":
		return true
	}
	return false
}

// Failed reports whether the task terminated unsuccessfully.
func (t *TaskStatus) Failed() bool {
	return t.Status == "failed" || t.Status == "error"
}

// FinalText extracts the completed task's answer text.
func (t *TaskStatus) FinalText() string {
	for _, field := range resultFields {
		if v, ok := t.Result[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
