package genie

import "strings"

// The coordination loop speaks a tag-delimited ReAct dialect: the model
// emits <REASONING>, then either an <ACTION>/<ACTION_INPUT> pair to invoke
// an expert or an <ANSWER> block carrying the final text.

// parseAction extracts the requested tool call from a model response.
// Both values are empty when the response contains no action.
func parseAction(content string) (action, actionInput string) {
	action = extractTag(content, "ACTION")
	if action == "" {
		return "", ""
	}
	actionInput = extractTag(content, "ACTION_INPUT")
	return action, actionInput
}

// parseAnswer extracts the final answer block. When no <ANSWER> tag is
// present the empty string is returned; callers fall back to the raw text.
func parseAnswer(content string) string {
	return extractTag(content, "ANSWER")
}

func extractTag(content, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	start := strings.Index(content, open)
	if start == -1 {
		return ""
	}
	rest := content[start+len(open):]
	end := strings.Index(rest, close)
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
