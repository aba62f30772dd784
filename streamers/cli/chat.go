// Package cli renders turn execution on a terminal: a REPL prompt for the
// user and live progress lines driven by the engine's execution events.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/rgeissen/uderia-sub003/events"
)

// ChatPresenter implements events.Sink for terminal I/O. Coordination
// events drive a spinner while the turn runs; the final answer is rendered
// as markdown.
type ChatPresenter struct {
	reader   *bufio.Reader
	spinner  *spinner
	renderer *glamour.TermRenderer
}

// NewChatPresenter creates a new CLI chat presenter
func NewChatPresenter() *ChatPresenter {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &ChatPresenter{
		reader:   bufio.NewReader(os.Stdin),
		spinner:  newSpinner(),
		renderer: renderer,
	}
}

func (p *ChatPresenter) Welcome(profileTag, modelName string) {
	fmt.Printf("%s%sStarting chat with profile '%s'%s (model: %s)\n", ColorBold, ColorOrange, profileTag, ColorReset, modelName)
	fmt.Printf("%sType 'exit' or 'quit' to end the conversation.%s\n", ColorGray, ColorReset)
	fmt.Println()
}

func (p *ChatPresenter) AwaitInput() (string, error) {
	fmt.Printf("%s>  %s", ColorGray, ColorReset)
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input != "" {
		// Redraw the user message in light brown with a > prefix.
		fmt.Print("\033[1A\033[K")
		fmt.Printf("%s>  %s%s\n\n", ColorGray, ColorLightBrown, input+ColorReset)
	}
	return input, nil
}

func (p *ChatPresenter) Goodbye() {
	fmt.Printf("%sGoodbye!%s\n", ColorGray, ColorReset)
}

func (p *ChatPresenter) Error(err error) {
	p.spinner.Stop()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// Emit maps execution events onto spinner updates and progress lines.
func (p *ChatPresenter) Emit(ev events.Event) {
	switch ev.Type {
	case events.TypeCoordinationStart:
		p.spinner.Restart("Coordinating...")
	case events.TypeSlaveInvoked:
		tag, _ := ev.Payload["profile_tag"].(string)
		p.spinner.Restart(fmt.Sprintf("Consulting %s%s%s...", ColorBold, tag, ColorReset))
	case events.TypeSlaveCompleted:
		tag, _ := ev.Payload["profile_tag"].(string)
		p.spinner.Stop()
		fmt.Printf("%s✓%s %s%s%s answered\n\n", ColorGray, ColorReset, ColorBold, tag, ColorReset)
		p.spinner.Start("Coordinating...")
	case events.TypeSynthesisStart:
		p.spinner.Restart("Synthesizing answer...")
	case events.TypeSystemCorrection:
		correction, _ := ev.Payload["correction"].(string)
		p.spinner.Stop()
		fmt.Printf("%s⟳ %s%s\n", ColorMagenta, correction, ColorReset)
		p.spinner.Start("Executing...")
	case events.TypeStatusIndicatorUpdate:
		status, _ := ev.Payload["status"].(string)
		p.spinner.Restart(status + "...")
	case events.TypeCoordinationComplete, events.TypeCoordinationError, events.TypeTurnError:
		p.spinner.Stop()
	}
}

// RenderAnswer prints the final answer with markdown rendering.
func (p *ChatPresenter) RenderAnswer(content string) {
	p.spinner.Stop()

	if content == "" {
		return
	}

	rendered := content
	if p.renderer != nil {
		if out, err := p.renderer.Render(content); err == nil {
			rendered = out
		}
	}

	// Glamour adds leading/trailing newlines, trim them.
	rendered = strings.TrimSpace(rendered)
	fmt.Printf("%s•%s %s\n\n", ColorGray, ColorReset, rendered)
}
