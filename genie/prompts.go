package genie

import (
	"fmt"
	"strings"

	"github.com/rgeissen/uderia-sub003/tools"
)

// buildSystemPrompt produces the coordination instructions for the LLM
// loop, listing every expert tool with enough detail for routing.
func buildSystemPrompt(genieProfile Profile, slaveTools []tools.Tool) string {
	var sb strings.Builder

	sb.WriteString("You are a coordinator agent. You decompose the user's request and route sub-queries to specialized experts, then synthesize their answers into one response.\n\n")
	sb.WriteString("Available experts:\n")
	for _, t := range slaveTools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.ToolName(), t.ToolDescription()))
	}

	sb.WriteString(`
To consult an expert, respond with:
<REASONING>
Why this expert, and what you need from it.
</REASONING>
<ACTION>tool_name</ACTION>
<ACTION_INPUT>{"query": "the sub-query for the expert"}</ACTION_INPUT>

Expert results arrive as <OBSERVATION> blocks. Consult as many experts as
needed, one at a time. When you have everything required, respond with:
<ANSWER>
Your complete final answer to the user.
</ANSWER>

Never invent expert results. If an expert reports an error, you may retry
it, consult a different expert, or explain the limitation in your answer.`)

	return sb.String()
}

// formatObservation wraps a tool result for feedback into the model context.
func formatObservation(result string) string {
	return fmt.Sprintf("<OBSERVATION>\n%s\n</OBSERVATION>", result)
}
