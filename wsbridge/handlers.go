package wsbridge

import (
	"fmt"

	"github.com/rgeissen/uderia-sub003/router"
)

func (c *Client) registerHandlers() {
	c.handlers[TypeTurnRequest] = c.handleTurnRequest
}

// handleTurnRequest runs one turn on behalf of the gateway and replies with
// the final answer payload. Execution events stream separately through the
// router's sink while the turn runs.
func (c *Client) handleTurnRequest(env *Envelope) (*Envelope, error) {
	if c.router == nil {
		return nil, fmt.Errorf("no turn router configured")
	}

	var req TurnRequestPayload
	if err := DecodePayload(env, &req); err != nil {
		return nil, fmt.Errorf("decode turn request: %w", err)
	}
	if req.SessionID == "" || req.Query == "" {
		return nil, fmt.Errorf("turn request requires sessionId and query")
	}

	result, err := c.router.RunTurn(c.ctx, router.TurnParams{
		SessionID:  req.SessionID,
		Query:      req.Query,
		ProfileTag: req.ProfileTag,
		Primer:     req.Primer,
	})
	if err != nil {
		return NewResponse(env.RequestID, TypeTurnResult, &TurnResultPayload{
			SessionID: req.SessionID,
			Success:   false,
			Error:     err.Error(),
		})
	}

	return NewResponse(env.RequestID, TypeTurnResult, &TurnResultPayload{
		SessionID:         req.SessionID,
		Response:          result.Response,
		Success:           result.Success,
		ToolsUsed:         result.ToolsUsed,
		SlaveSessionsUsed: result.SlaveSessionsUsed,
		InputTokens:       result.InputTokens,
		OutputTokens:      result.OutputTokens,
	})
}
