package genie

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/llm"
	"github.com/rgeissen/uderia-sub003/remote"
	"github.com/rgeissen/uderia-sub003/tools"
)

const (
	defaultMaxIterations   = 8
	defaultMaxNestingDepth = 2
)

// Config carries a genie profile's coordination settings.
type Config struct {
	Temperature     float64
	MaxIterations   int
	MaxNestingDepth int
	PollInterval    time.Duration
	MaxPolls        int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.MaxNestingDepth <= 0 {
		c.MaxNestingDepth = defaultMaxNestingDepth
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = defaultMaxPolls
	}
	return c
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	GenieProfile    Profile
	Slaves          []Profile
	Provider        llm.Provider
	Model           string
	Remote          *remote.Client
	Cache           *SessionCache
	Sink            events.Sink
	Logger          hclog.Logger
	Config          Config
	Level           int
	ParentSessionID string
}

// Result is the outcome of one coordination execution.
type Result struct {
	Response          string
	ToolsUsed         []string
	SlaveSessionsUsed map[string]string // profile tag → slave session id
	Events            []events.Event
	Success           bool
	InputTokens       int
	OutputTokens      int
}

// Coordinator runs the LLM-driven routing loop over a set of slave expert
// tools. Construction enforces the nesting guard; Execute never propagates
// loop failures — a degraded answer and a success=false completion event
// stand in for them.
type Coordinator struct {
	profile  Profile
	slaves   []Profile
	session  *llm.Session
	registry *tools.Registry
	cache    *SessionCache
	sink     events.Sink
	logger   hclog.Logger
	cfg      Config
	level    int
	parentID string

	collector    *events.Collector
	usedSessions map[string]string
	toolsUsed    []string
	inputTokens  int
	outputTokens int
}

// NewCoordinator validates configuration and the nesting depth, then builds
// one slave tool per expert profile. On a guard rejection an error event is
// emitted and no slave sessions are created.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	cfg := opts.Config.withDefaults()

	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if opts.Provider == nil || opts.Model == "" {
		return nil, &ConfigurationError{Profile: opts.GenieProfile.Tag, Reason: "no LLM model configured"}
	}
	if len(opts.Slaves) == 0 {
		return nil, &ConfigurationError{Profile: opts.GenieProfile.Tag, Reason: "empty slave profile list"}
	}

	if !NestingAllowed(opts.Level, cfg.MaxNestingDepth) {
		err := &DepthExceededError{Level: opts.Level, MaxDepth: cfg.MaxNestingDepth}
		sink.Emit(events.New(events.TypeCoordinationError, map[string]any{
			"profile_tag": opts.GenieProfile.Tag,
			"error":       err.Error(),
		}))
		return nil, err
	}

	c := &Coordinator{
		profile:      opts.GenieProfile,
		slaves:       opts.Slaves,
		cache:        opts.Cache,
		logger:       logger,
		cfg:          cfg,
		level:        opts.Level,
		parentID:     opts.ParentSessionID,
		collector:    events.NewCollector(),
		usedSessions: make(map[string]string),
	}
	// Every event reaches both the caller's sink and the internal
	// collector returned with the result.
	c.sink = events.Multi(c.collector, sink)

	c.registry = tools.NewRegistry()
	for _, slave := range opts.Slaves {
		c.registry.Register(NewSlaveClient(SlaveClientOptions{
			Profile:         slave,
			ParentSessionID: opts.ParentSessionID,
			Remote:          opts.Remote,
			Cache:           opts.Cache,
			Sink:            c.sink,
			Logger:          logger.Named("slave." + slave.Tag),
			PollInterval:    cfg.PollInterval,
			MaxPolls:        cfg.MaxPolls,
			OnUse: func(tag, sessionID string) {
				c.usedSessions[tag] = sessionID
			},
		}))
	}

	c.session = llm.NewSession(opts.Provider, opts.Model, cfg.Temperature,
		buildSystemPrompt(opts.GenieProfile, c.registry.All()))

	return c, nil
}

// PreloadSlaveSessions seeds the session cache from persisted bindings
// (profile id → slave session id) for this coordinator's parent session.
func (c *Coordinator) PreloadSlaveSessions(bindings map[string]string) {
	c.cache.Preload(c.parentID, bindings)
}

// Execute runs the coordination loop for one query. The returned result is
// always non-nil; failures inside the loop degrade the response instead of
// propagating.
func (c *Coordinator) Execute(ctx context.Context, query string, history []llm.Message) *Result {
	start := time.Now()

	if len(history) > 0 && len(c.session.History()) == 0 {
		c.session.SeedHistory(history)
	}

	c.sink.Emit(events.New(events.TypeCoordinationStart, map[string]any{
		"profile_tag": c.profile.Tag,
		"level":       c.level,
		"experts":     c.slaveTags(),
	}))

	finalAnswer, success := c.runLoop(ctx, query)

	c.sink.Emit(events.New(events.TypeCoordinationComplete, map[string]any{
		"profile_tag":   c.profile.Tag,
		"duration_ms":   time.Since(start).Milliseconds(),
		"profiles_used": c.consultedTags(),
		"success":       success,
		"input_tokens":  c.inputTokens,
		"output_tokens": c.outputTokens,
	}))

	used := make(map[string]string, len(c.usedSessions))
	for tag, id := range c.usedSessions {
		used[tag] = id
	}

	return &Result{
		Response:          finalAnswer,
		ToolsUsed:         append([]string(nil), c.toolsUsed...),
		SlaveSessionsUsed: used,
		Events:            c.collector.Events(),
		Success:           success,
		InputTokens:       c.inputTokens,
		OutputTokens:      c.outputTokens,
	}
}

// runLoop drives the ReAct rounds. Tool dispatch happens in the order the
// model requests it; each result is fed back before the next round.
func (c *Coordinator) runLoop(ctx context.Context, query string) (string, bool) {
	currentInput := query

	for step := 1; step <= c.cfg.MaxIterations; step++ {
		resp, err := c.session.Send(ctx, currentInput)
		if err != nil {
			c.logger.Error("coordination loop failed", "step", step, "error", err)
			return fmt.Sprintf("Coordination failed: %v", err), false
		}

		c.inputTokens += resp.Usage.InputTokens
		c.outputTokens += resp.Usage.OutputTokens

		action, actionInput := parseAction(resp.Content)
		kind := "synthesis"
		if action != "" {
			kind = "routing_decision"
		}
		c.sink.Emit(events.New(events.TypeLLMStep, map[string]any{
			"step":          step,
			"kind":          kind,
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		}))

		if action == "" {
			answer := parseAnswer(resp.Content)
			if answer == "" {
				answer = strings.TrimSpace(resp.Content)
			}
			c.emitSynthesisStart()
			return answer, true
		}

		tool, ok := c.registry.Get(action)
		if !ok {
			currentInput = formatObservation(fmt.Sprintf(
				"Error: unknown expert '%s'. Available experts: %s",
				action, strings.Join(c.registry.Names(), ", ")))
			continue
		}

		c.toolsUsed = append(c.toolsUsed, action)
		result := tool.Call(actionInput)
		currentInput = formatObservation(result)
	}

	// Iteration budget exhausted without a final answer: force one
	// synthesis round with no further tool access.
	c.emitSynthesisStart()
	resp, err := c.session.Send(ctx,
		"You have used all available expert consultations. Provide your final <ANSWER> now based on the observations so far.")
	if err != nil {
		c.logger.Error("forced synthesis failed", "error", err)
		return fmt.Sprintf("Coordination failed: %v", err), false
	}

	c.inputTokens += resp.Usage.InputTokens
	c.outputTokens += resp.Usage.OutputTokens
	c.sink.Emit(events.New(events.TypeLLMStep, map[string]any{
		"step":          c.cfg.MaxIterations + 1,
		"kind":          "synthesis",
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}))

	answer := parseAnswer(resp.Content)
	if answer == "" {
		answer = strings.TrimSpace(resp.Content)
	}
	return answer, true
}

func (c *Coordinator) emitSynthesisStart() {
	c.sink.Emit(events.New(events.TypeSynthesisStart, map[string]any{
		"profile_tag": c.profile.Tag,
		"consulted":   c.consultedTags(),
	}))
}

func (c *Coordinator) slaveTags() []string {
	tags := make([]string, len(c.slaves))
	for i, s := range c.slaves {
		tags[i] = s.Tag
	}
	return tags
}

// consultedTags lists the experts actually invoked in this execution, not
// the full historical binding cache.
func (c *Coordinator) consultedTags() []string {
	tags := make([]string, 0, len(c.usedSessions))
	for tag := range c.usedSessions {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
