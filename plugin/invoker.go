package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rgeissen/uderia-sub003/tools"
)

// Invoker routes tools.Invoker calls onto loaded plugin clients. Tool names
// are resolved once at registration; two plugins providing the same tool
// name is a configuration error.
type Invoker struct {
	mu      sync.RWMutex
	byTool  map[string]*PluginClient
	clients []*PluginClient
}

func NewInvoker() *Invoker {
	return &Invoker{byTool: make(map[string]*PluginClient)}
}

// AddClient registers all tools served by a plugin client.
func (inv *Invoker) AddClient(client *PluginClient) error {
	infos, err := client.ListTools()
	if err != nil {
		return fmt.Errorf("list tools of plugin %s: %w", client.Name(), err)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, info := range infos {
		if existing, ok := inv.byTool[info.Name]; ok {
			return fmt.Errorf("tool %q provided by both %s and %s", info.Name, existing.Name(), client.Name())
		}
		inv.byTool[info.Name] = client
	}
	inv.clients = append(inv.clients, client)
	return nil
}

// Tools returns the names of all registered tools.
func (inv *Invoker) Tools() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	names := make([]string, 0, len(inv.byTool))
	for name := range inv.byTool {
		names = append(names, name)
	}
	return names
}

// Invoke dispatches a tool call to the owning plugin. The plugin's text
// response is decoded as a structured result when it is one; bare text
// becomes a success result with the text as data.
func (inv *Invoker) Invoke(ctx context.Context, tool string, args map[string]any) (*tools.Result, error) {
	inv.mu.RLock()
	client, ok := inv.byTool[tool]
	inv.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no plugin provides tool %q", tool)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args for %s: %w", tool, err)
	}

	type callOutcome struct {
		text string
		err  error
	}
	done := make(chan callOutcome, 1)
	go func() {
		text, err := client.Call(tool, string(payload))
		done <- callOutcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case outcome := <-done:
		if outcome.err != nil {
			return nil, fmt.Errorf("plugin call %s: %w", tool, outcome.err)
		}
		return decodeResult(outcome.text), nil
	}
}

func decodeResult(text string) *tools.Result {
	var result tools.Result
	if err := json.Unmarshal([]byte(text), &result); err == nil && result.Status != "" {
		return &result
	}
	return &tools.Result{Status: tools.StatusSuccess, Data: text}
}

// Close shuts down all registered plugin clients.
func (inv *Invoker) Close() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, client := range inv.clients {
		client.Close()
	}
	inv.clients = nil
	inv.byTool = make(map[string]*PluginClient)
}
