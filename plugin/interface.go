// Package plugin hosts external tool providers as separate processes via
// hashicorp/go-plugin. A plugin serves one or more tools over net/rpc; the
// engine exposes them to plan execution through the tools.Invoker surface.
package plugin

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/rgeissen/uderia-sub003/tools"
)

// Handshake is the handshake config shared by host and plugins. The cookie
// only prevents accidental execution of a plugin binary by hand; it is not
// a security boundary.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "UDERIA_PLUGIN",
	MagicCookieValue: "c1c09cf5a3f3f2d1",
}

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]goplugin.Plugin{
	"tool": &ToolPlugin{},
}

// ToolInfo contains metadata about a tool
type ToolInfo struct {
	Name        string
	Description string
	Schema      tools.Schema
}

// ToolProvider is the interface a plugin implements to serve tools.
type ToolProvider interface {
	// Configure passes settings from HCL config to the plugin
	Configure(settings map[string]string) error

	// Call invokes a tool with the given JSON payload
	Call(toolName string, payload string) (string, error)

	// GetToolInfo returns metadata about a specific tool
	GetToolInfo(toolName string) (*ToolInfo, error)

	// ListTools returns info for all tools this plugin provides
	ListTools() ([]*ToolInfo, error)
}

// ToolPlugin is the go-plugin wrapper around a ToolProvider.
type ToolPlugin struct {
	Impl ToolProvider
}

func (p *ToolPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *ToolPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

// Serve runs a ToolProvider as a plugin process. Called from a plugin
// binary's main.
func Serve(provider ToolProvider) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"tool": &ToolPlugin{Impl: provider},
		},
	})
}
