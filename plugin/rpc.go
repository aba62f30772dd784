package plugin

import "net/rpc"

// Wire types are plain structs so gob can move them without custom codecs.

type configureArgs struct {
	Settings map[string]string
}

type callArgs struct {
	ToolName string
	Payload  string
}

type callReply struct {
	Result string
}

type toolInfoArgs struct {
	ToolName string
}

type toolInfoReply struct {
	Info *ToolInfo
}

type listToolsReply struct {
	Infos []*ToolInfo
}

// rpcClient is the host-side proxy talking to a plugin process.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Configure(settings map[string]string) error {
	var reply struct{}
	return c.client.Call("Plugin.Configure", &configureArgs{Settings: settings}, &reply)
}

func (c *rpcClient) Call(toolName string, payload string) (string, error) {
	var reply callReply
	if err := c.client.Call("Plugin.Call", &callArgs{ToolName: toolName, Payload: payload}, &reply); err != nil {
		return "", err
	}
	return reply.Result, nil
}

func (c *rpcClient) GetToolInfo(toolName string) (*ToolInfo, error) {
	var reply toolInfoReply
	if err := c.client.Call("Plugin.GetToolInfo", &toolInfoArgs{ToolName: toolName}, &reply); err != nil {
		return nil, err
	}
	return reply.Info, nil
}

func (c *rpcClient) ListTools() ([]*ToolInfo, error) {
	var reply listToolsReply
	if err := c.client.Call("Plugin.ListTools", new(struct{}), &reply); err != nil {
		return nil, err
	}
	return reply.Infos, nil
}

// rpcServer runs inside the plugin process and dispatches to the real
// provider implementation.
type rpcServer struct {
	impl ToolProvider
}

func (s *rpcServer) Configure(args *configureArgs, reply *struct{}) error {
	return s.impl.Configure(args.Settings)
}

func (s *rpcServer) Call(args *callArgs, reply *callReply) error {
	result, err := s.impl.Call(args.ToolName, args.Payload)
	if err != nil {
		return err
	}
	reply.Result = result
	return nil
}

func (s *rpcServer) GetToolInfo(args *toolInfoArgs, reply *toolInfoReply) error {
	info, err := s.impl.GetToolInfo(args.ToolName)
	if err != nil {
		return err
	}
	reply.Info = info
	return nil
}

func (s *rpcServer) ListTools(args *struct{}, reply *listToolsReply) error {
	infos, err := s.impl.ListTools()
	if err != nil {
		return err
	}
	reply.Infos = infos
	return nil
}
