// Package router owns turn execution: it loads the session, resolves the
// active profile, and routes the query either to the genie coordinator or
// to the direct plan executor, handling all turn bookkeeping on the way
// out (history, token totals, bindings, session titles).
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/genie"
	"github.com/rgeissen/uderia-sub003/llm"
	"github.com/rgeissen/uderia-sub003/remote"
	"github.com/rgeissen/uderia-sub003/store"
)

// PlanResult is the outcome of a direct plan-execution turn.
type PlanResult struct {
	Response     string
	Success      bool
	InputTokens  int
	OutputTokens int
}

// PlanExecutor runs non-genie turns. It streams its events to the provided
// sink and returns the final answer payload.
type PlanExecutor interface {
	ExecuteTurn(ctx context.Context, profile *config.Profile, query string, history []llm.Message, sink events.Sink) (*PlanResult, error)
}

// Options configures a Router.
type Options struct {
	Config  *config.Config
	Stores  *store.Bundle
	Remote  *remote.Client
	Cache   *genie.SessionCache
	Plans   PlanExecutor
	Sink    events.Sink
	Logger  hclog.Logger
	Factory ProviderFactory
}

// Router executes turns against persisted sessions.
type Router struct {
	cfg       *config.Config
	stores    *store.Bundle
	remote    *remote.Client
	cache     *genie.SessionCache
	plans     PlanExecutor
	sink      events.Sink
	logger    hclog.Logger
	providers *providerCache
}

func New(opts Options) *Router {
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cache := opts.Cache
	if cache == nil {
		cache = genie.NewSessionCache()
	}
	return &Router{
		cfg:       opts.Config,
		stores:    opts.Stores,
		remote:    opts.Remote,
		cache:     cache,
		plans:     opts.Plans,
		sink:      sink,
		logger:    logger,
		providers: newProviderCache(opts.Factory),
	}
}

// TurnParams describe one turn request.
type TurnParams struct {
	SessionID string
	Query     string
	// ProfileTag overrides the session's bound profile for this turn.
	ProfileTag string
	// Primer marks an initialization message rather than a user query.
	Primer bool
}

// TurnResult is the final answer payload of a completed turn.
type TurnResult struct {
	Response          string
	Success           bool
	ToolsUsed         []string
	SlaveSessionsUsed map[string]string
	InputTokens       int
	OutputTokens      int
}

// RunTurn executes one turn. A nil result with an error means the turn was
// not recorded: the session could not be loaded or the profile could not be
// resolved. Once execution starts, the turn always completes with some
// answer, possibly a degraded one.
func (r *Router) RunTurn(ctx context.Context, params TurnParams) (*TurnResult, error) {
	sess, err := r.stores.Sessions.GetSession(params.SessionID)
	if err != nil {
		r.emitTurnError(params.SessionID, fmt.Sprintf("load session: %v", err))
		return nil, fmt.Errorf("load session %s: %w", params.SessionID, err)
	}

	profile, err := r.resolveProfile(sess, params.ProfileTag)
	if err != nil {
		r.emitTurnError(params.SessionID, err.Error())
		return nil, err
	}

	history, err := r.loadHistory(sess.ID)
	if err != nil {
		r.emitTurnError(params.SessionID, fmt.Sprintf("load history: %v", err))
		return nil, fmt.Errorf("load history for %s: %w", sess.ID, err)
	}

	sink := events.NewStoringSink(r.sink, r.stores.Events, sess.ID, r.logger.Named("events"))

	// Everything that can still reject the turn runs before the user
	// message is persisted, so a nil return never leaves a half-recorded
	// turn behind.
	var exec func() (*TurnResult, error)
	if profile.Type == config.TypeGenie {
		exec, err = r.prepareGenieTurn(ctx, sess, profile, params.Query, history, sink)
	} else {
		exec, err = r.preparePlanTurn(ctx, sess, profile, params.Query, history, sink)
	}
	if err != nil {
		return nil, err
	}

	if err := r.stores.Sessions.AppendMessage(sess.ID, string(llm.RoleUser), params.Query, params.Primer); err != nil {
		r.emitTurnError(params.SessionID, fmt.Sprintf("persist user message: %v", err))
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	return exec()
}

// resolveProfile applies the override > session binding > system default
// precedence.
func (r *Router) resolveProfile(sess *store.Session, override string) (*config.Profile, error) {
	tag := override
	if tag == "" {
		tag = sess.ProfileID
	}
	if tag == "" {
		tag = r.cfg.DefaultProfile
	}
	if tag == "" {
		return nil, fmt.Errorf("session %s has no profile and no default is configured", sess.ID)
	}
	profile, ok := r.cfg.ProfileByTag(tag)
	if !ok {
		return nil, fmt.Errorf("unknown profile '%s'", tag)
	}
	return profile, nil
}

// prepareGenieTurn builds the provider and coordinator up front and returns
// the execution step to run once the user message is persisted. Any failure
// here rejects the turn before anything is recorded.
func (r *Router) prepareGenieTurn(ctx context.Context, sess *store.Session, profile *config.Profile, query string, history []llm.Message, sink events.Sink) (func() (*TurnResult, error), error) {
	modelCfg, actualModel, err := config.ResolveModelKey(r.cfg.Models, profile.Model)
	if err != nil {
		r.emitTurnError(sess.ID, err.Error())
		return nil, err
	}
	provider, err := r.providers.get(ctx, modelCfg)
	if err != nil {
		r.emitTurnError(sess.ID, fmt.Sprintf("build provider: %v", err))
		return nil, err
	}

	slaveCfgs, err := r.cfg.SlaveProfiles(profile)
	if err != nil {
		r.emitTurnError(sess.ID, err.Error())
		return nil, err
	}
	slaves := make([]genie.Profile, len(slaveCfgs))
	for i, s := range slaveCfgs {
		slaves[i] = genie.Profile{
			ID:          s.Name,
			Tag:         s.Tag,
			DisplayName: s.DisplayName,
			Description: s.Description,
			Type:        string(s.Type),
		}
	}

	coord, err := genie.NewCoordinator(genie.CoordinatorOptions{
		GenieProfile: genie.Profile{
			ID:          profile.Name,
			Tag:         profile.Tag,
			DisplayName: profile.DisplayName,
			Description: profile.Description,
			Type:        string(profile.Type),
		},
		Slaves:          slaves,
		Provider:        provider,
		Model:           actualModel,
		Remote:          r.remote,
		Cache:           r.cache,
		Sink:            sink,
		Logger:          r.logger.Named("genie." + profile.Tag),
		Config:          genieConfig(profile),
		Level:           0,
		ParentSessionID: sess.ID,
	})
	if err != nil {
		r.emitTurnError(sess.ID, fmt.Sprintf("build coordinator: %v", err))
		return nil, err
	}

	bindings, err := r.stores.Bindings.GetBindings(sess.ID)
	if err != nil {
		r.logger.Warn("load slave bindings", "session", sess.ID, "error", err)
	} else if len(bindings) > 0 {
		preload := make(map[string]string, len(bindings))
		for _, b := range bindings {
			preload[b.ProfileID] = b.SlaveSessionID
		}
		coord.PreloadSlaveSessions(preload)
	}

	return func() (*TurnResult, error) {
		execCtx := ctx
		if profile.Genie != nil && profile.Genie.QueryTimeoutSeconds > 0 {
			var cancel context.CancelFunc
			execCtx, cancel = context.WithTimeout(ctx, time.Duration(profile.Genie.QueryTimeoutSeconds)*time.Second)
			defer cancel()
		}

		result := coord.Execute(execCtx, query, history)

		r.finishTurn(sess, result.Response, turnTrace{
			ProfileTag:        profile.Tag,
			ToolsUsed:         result.ToolsUsed,
			SlaveSessionsUsed: result.SlaveSessionsUsed,
			Success:           result.Success,
			InputTokens:       result.InputTokens,
			OutputTokens:      result.OutputTokens,
		})
		r.saveBindings(sess.ID)
		r.ensureTitle(ctx, sess, provider, actualModel, query)

		return &TurnResult{
			Response:          result.Response,
			Success:           result.Success,
			ToolsUsed:         result.ToolsUsed,
			SlaveSessionsUsed: result.SlaveSessionsUsed,
			InputTokens:       result.InputTokens,
			OutputTokens:      result.OutputTokens,
		}, nil
	}, nil
}

func (r *Router) preparePlanTurn(ctx context.Context, sess *store.Session, profile *config.Profile, query string, history []llm.Message, sink events.Sink) (func() (*TurnResult, error), error) {
	if r.plans == nil {
		err := fmt.Errorf("profile '%s' requires plan execution but none is configured", profile.Tag)
		r.emitTurnError(sess.ID, err.Error())
		return nil, err
	}

	return func() (*TurnResult, error) {
		planResult, err := r.plans.ExecuteTurn(ctx, profile, query, history, sink)
		if err != nil {
			// Plan failures degrade the turn the same way coordination
			// failures do.
			planResult = &PlanResult{
				Response: fmt.Sprintf("Execution failed: %v", err),
				Success:  false,
			}
		}

		r.finishTurn(sess, planResult.Response, turnTrace{
			ProfileTag:   profile.Tag,
			Success:      planResult.Success,
			InputTokens:  planResult.InputTokens,
			OutputTokens: planResult.OutputTokens,
		})

		return &TurnResult{
			Response:     planResult.Response,
			Success:      planResult.Success,
			InputTokens:  planResult.InputTokens,
			OutputTokens: planResult.OutputTokens,
		}, nil
	}, nil
}

// turnTrace is the structured trace stored as last_turn_data.
type turnTrace struct {
	ProfileTag        string            `json:"profileTag"`
	ToolsUsed         []string          `json:"toolsUsed,omitempty"`
	SlaveSessionsUsed map[string]string `json:"slaveSessionsUsed,omitempty"`
	Success           bool              `json:"success"`
	InputTokens       int               `json:"inputTokens"`
	OutputTokens      int               `json:"outputTokens"`
}

// finishTurn persists the assistant response and the turn bookkeeping.
// Persistence problems are logged, not surfaced: the answer already exists
// and belongs to the caller.
func (r *Router) finishTurn(sess *store.Session, response string, trace turnTrace) {
	if err := r.stores.Sessions.AppendMessage(sess.ID, string(llm.RoleAssistant), response, false); err != nil {
		r.logger.Error("persist assistant message", "session", sess.ID, "error", err)
	}

	turnJSON, err := json.Marshal(trace)
	if err != nil {
		r.logger.Error("marshal turn trace", "session", sess.ID, "error", err)
		turnJSON = []byte("{}")
	}
	if err := r.stores.Sessions.RecordTurn(sess.ID, string(turnJSON), trace.InputTokens, trace.OutputTokens); err != nil {
		r.logger.Error("record turn", "session", sess.ID, "error", err)
	}
}

// saveBindings persists the cache's bindings for this parent session so the
// next coordinator reuses the same expert sessions.
func (r *Router) saveBindings(sessionID string) {
	snapshot := r.cache.Snapshot(sessionID)
	for profileID, slaveSessionID := range snapshot {
		if err := r.stores.Bindings.SaveBinding(sessionID, profileID, slaveSessionID); err != nil {
			r.logger.Error("save slave binding", "session", sessionID, "profile", profileID, "error", err)
		}
	}
}

// ensureTitle generates a short session title on the first turn.
func (r *Router) ensureTitle(ctx context.Context, sess *store.Session, provider llm.Provider, model, query string) {
	if sess.TurnCount > 0 || sess.Title != "" {
		return
	}

	caller := &llm.ProviderCaller{Provider: provider, Model: model}
	completion, err := caller.Call(ctx,
		fmt.Sprintf("Generate a title of at most six words for a conversation that starts with: %q. Respond with the title only.", query),
		"You name conversations. Respond with a short plain-text title, no quotes.",
		0)
	if err != nil {
		r.logger.Warn("generate session title", "session", sess.ID, "error", err)
		return
	}

	title := strings.TrimSpace(strings.Trim(completion.Text, `"`))
	if title == "" {
		return
	}
	if err := r.stores.Sessions.SetTitle(sess.ID, title); err != nil {
		r.logger.Warn("set session title", "session", sess.ID, "error", err)
	}
}

func (r *Router) loadHistory(sessionID string) ([]llm.Message, error) {
	msgs, err := r.stores.Sessions.GetMessages(sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return history, nil
}

func (r *Router) emitTurnError(sessionID, message string) {
	r.sink.Emit(events.New(events.TypeTurnError, map[string]any{
		"session_id": sessionID,
		"error":      message,
	}))
}

func genieConfig(profile *config.Profile) genie.Config {
	var cfg genie.Config
	if g := profile.Genie; g != nil {
		cfg.Temperature = g.Temperature
		cfg.MaxIterations = g.MaxIterations
		cfg.MaxNestingDepth = g.MaxNestingDepth
		if g.PollIntervalSeconds > 0 {
			cfg.PollInterval = time.Duration(g.PollIntervalSeconds) * time.Second
		}
		cfg.MaxPolls = g.MaxPolls
	}
	return cfg
}
