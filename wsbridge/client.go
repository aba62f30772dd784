package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/router"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	requestTimeout = 30 * time.Second
)

// RequestHandler processes an incoming request from the gateway and returns
// a response envelope, or nil when no response is due.
type RequestHandler func(env *Envelope) (*Envelope, error)

// Options configures a bridge Client.
type Options struct {
	URL          string
	InstanceName string
	Version      string
	Router       *router.Router
	Logger       hclog.Logger
}

// Client manages the WebSocket connection from an engine instance to the
// gateway: it registers, answers turn requests, and pushes execution
// events.
type Client struct {
	url          string
	instanceName string
	version      string
	router       *router.Router
	logger       hclog.Logger

	ws   *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	pending    map[string]chan *Envelope // requestID → response channel
	instanceID string                    // assigned by the gateway on register

	handlers map[MessageType]RequestHandler

	done chan struct{}
	ctx  context.Context
	stop context.CancelFunc
}

// NewClient creates a new bridge client.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ctx, stop := context.WithCancel(context.Background())
	c := &Client{
		url:          opts.URL,
		instanceName: opts.InstanceName,
		version:      opts.Version,
		router:       opts.Router,
		logger:       logger,
		send:         make(chan []byte, 256),
		pending:      make(map[string]chan *Envelope),
		handlers:     make(map[MessageType]RequestHandler),
		done:         make(chan struct{}),
		ctx:          ctx,
		stop:         stop,
	}
	c.registerHandlers()
	return c
}

// Connect dials the gateway WebSocket endpoint, registers, and starts
// read/write pumps.
func (c *Client) Connect() error {
	c.logger.Info("connecting to gateway", "url", c.url)

	ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	c.ws = ws

	// Pumps first, register() needs them to send and receive.
	go c.readPump()
	go c.writePump()

	if err := c.register(); err != nil {
		c.Close()
		return fmt.Errorf("register: %w", err)
	}

	c.logger.Info("registered with gateway", "instance_id", c.instanceID)
	return nil
}

// Run blocks until the connection is closed or the client is stopped.
func (c *Client) Run() error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	case <-c.ctx.Done():
		return nil
	}
}

// Close shuts down the client.
func (c *Client) Close() {
	c.stop()
	if c.ws != nil {
		c.ws.Close()
	}
}

// InstanceID returns the ID assigned by the gateway.
func (c *Client) InstanceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instanceID
}

func (c *Client) register() error {
	req, err := NewRequest(TypeRegister, &RegisterPayload{
		InstanceName: c.instanceName,
		Version:      c.version,
	})
	if err != nil {
		return err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}

	var ack RegisterAckPayload
	if err := DecodePayload(resp, &ack); err != nil {
		return fmt.Errorf("decode register ack: %w", err)
	}
	if !ack.Accepted {
		return fmt.Errorf("registration rejected: %s", ack.Reason)
	}

	c.mu.Lock()
	c.instanceID = ack.InstanceID
	c.mu.Unlock()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid message from gateway", "error", err)
			continue
		}

		c.dispatch(&env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(env *Envelope) {
	// Responses to our own requests first.
	if env.RequestID != "" {
		c.mu.Lock()
		ch, ok := c.pending[env.RequestID]
		c.mu.Unlock()
		if ok {
			ch <- env
			return
		}
	}

	switch env.Type {
	case TypeHeartbeat:
		ack, _ := NewResponse(env.RequestID, TypeHeartbeatAck, &HeartbeatAckPayload{})
		c.sendEnvelope(ack)
	default:
		handler, ok := c.handlers[env.Type]
		if !ok {
			c.logger.Warn("unhandled message type from gateway", "type", env.Type)
			return
		}
		// Handlers may run a full turn; keep the read pump free.
		go func() {
			resp, err := handler(env)
			if err != nil {
				errResp, _ := NewError(env.RequestID, "handler_error", err.Error())
				c.sendEnvelope(errResp)
				return
			}
			if resp != nil {
				c.sendEnvelope(resp)
			}
		}()
	}
}

func (c *Client) sendEnvelope(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("client closed")
	}
}

// SendEvent sends a one-way event to the gateway (no response expected).
func (c *Client) SendEvent(env *Envelope) error {
	return c.sendEnvelope(env)
}

func (c *Client) sendRequest(env *Envelope) (*Envelope, error) {
	ch := make(chan *Envelope, 1)

	c.mu.Lock()
	c.pending[env.RequestID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, env.RequestID)
		c.mu.Unlock()
	}()

	if err := c.sendEnvelope(env); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("request timed out")
	}
}
