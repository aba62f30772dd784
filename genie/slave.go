package genie

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/remote"
	"github.com/rgeissen/uderia-sub003/tools"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultMaxPolls     = 300
	previewLimit        = 120
)

// Profile describes an agent profile participating in coordination, either
// as the genie itself or as one of its slave experts.
type Profile struct {
	ID          string
	Tag         string
	DisplayName string
	Description string
	Type        string
}

// SlaveClient exposes one expert profile as an invocable tool. Invocations
// create-or-reuse a remote session for the (parent session, profile) pair,
// submit the query, and poll the resulting task to completion.
//
// Failure policy: the inability to create a session is an infrastructure
// failure and comes back as an error; a remote task that fails or times out
// is returned as human-readable text so the coordinating LLM can see the
// failure and adapt.
type SlaveClient struct {
	profile         Profile
	parentSessionID string
	remote          *remote.Client
	cache           *SessionCache
	sink            events.Sink
	logger          hclog.Logger

	pollInterval time.Duration
	maxPolls     int

	// onUse is called after each invocation with the slave session id
	// actually touched, so the coordinator can track per-execution usage.
	onUse func(tag, sessionID string)
}

// SlaveClientOptions configures a SlaveClient.
type SlaveClientOptions struct {
	Profile         Profile
	ParentSessionID string
	Remote          *remote.Client
	Cache           *SessionCache
	Sink            events.Sink
	Logger          hclog.Logger
	PollInterval    time.Duration
	MaxPolls        int
	OnUse           func(tag, sessionID string)
}

func NewSlaveClient(opts SlaveClientOptions) *SlaveClient {
	if opts.Sink == nil {
		opts.Sink = events.Discard
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = defaultMaxPolls
	}
	return &SlaveClient{
		profile:         opts.Profile,
		parentSessionID: opts.ParentSessionID,
		remote:          opts.Remote,
		cache:           opts.Cache,
		sink:            opts.Sink,
		logger:          opts.Logger,
		pollInterval:    opts.PollInterval,
		maxPolls:        opts.MaxPolls,
		onUse:           opts.OnUse,
	}
}

// ToolName derives the dispatch name from the profile tag.
func (s *SlaveClient) ToolName() string {
	return "ask_" + s.profile.Tag
}

func (s *SlaveClient) ToolDescription() string {
	return fmt.Sprintf("Consult the expert '%s' (%s): %s [profile type: %s]",
		s.profile.Tag, s.profile.DisplayName, s.profile.Description, s.profile.Type)
}

func (s *SlaveClient) ToolPayloadSchema() tools.Schema {
	return tools.Schema{
		Type: tools.TypeObject,
		Properties: tools.PropertyMap{
			"query": {
				Type:        tools.TypeString,
				Description: "The question or sub-task to send to this expert",
			},
		},
		Required: []string{"query"},
	}
}

// Call implements tools.Tool. Infrastructure errors from Invoke are folded
// into text here: the coordinating LLM sees every failure as data.
func (s *SlaveClient) Call(params string) string {
	query := params
	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(params), &parsed); err == nil && parsed.Query != "" {
		query = parsed.Query
	}

	text, err := s.Invoke(context.Background(), query)
	if err != nil {
		return fmt.Sprintf("Error: expert '%s' is unavailable: %v", s.profile.Tag, err)
	}
	return text
}

// Invoke submits a query to the expert and waits for its answer. The error
// return is reserved for infrastructure failures (session creation, query
// submission, cancellation); task failures and timeouts come back as text.
func (s *SlaveClient) Invoke(ctx context.Context, query string) (result string, err error) {
	start := time.Now()
	success := false

	s.sink.Emit(events.New(events.TypeSlaveInvoked, map[string]any{
		"profile_tag": s.profile.Tag,
		"query":       truncate(query, previewLimit),
	}))

	defer func() {
		s.sink.Emit(events.New(events.TypeSlaveCompleted, map[string]any{
			"profile_tag": s.profile.Tag,
			"duration_ms": time.Since(start).Milliseconds(),
			"preview":     truncate(result, previewLimit),
			"success":     success,
		}))
	}()

	sessionID, err := s.cache.GetOrCreate(s.parentSessionID, s.profile.ID, func() (string, error) {
		return s.remote.CreateSession(ctx, remote.CreateSessionParams{
			ProfileID:            s.profile.ID,
			GenieParentSessionID: s.parentSessionID,
			GenieSlaveProfileID:  s.profile.ID,
		})
	})
	if err != nil {
		result = ""
		return "", fmt.Errorf("create slave session for %s: %w", s.profile.Tag, err)
	}

	if s.onUse != nil {
		s.onUse(s.profile.Tag, sessionID)
	}

	s.sink.Emit(events.New(events.TypeSlaveProgress, map[string]any{
		"profile_tag": s.profile.Tag,
		"session_id":  sessionID,
		"status":      "executing",
	}))

	taskID, err := s.remote.SubmitQuery(ctx, sessionID, query, s.profile.ID)
	if err != nil {
		result = ""
		return "", fmt.Errorf("submit query to %s: %w", s.profile.Tag, err)
	}

	result, success, err = s.pollTask(ctx, taskID)
	return result, err
}

// pollTask polls the task at a fixed interval up to the poll budget.
// Transient poll errors are retried, not aborted. Terminal failure and
// budget exhaustion are non-raising: they produce descriptive text.
func (s *SlaveClient) pollTask(ctx context.Context, taskID string) (string, bool, error) {
	for i := 0; i < s.maxPolls; i++ {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		status, err := s.remote.TaskStatus(ctx, taskID)
		if err != nil {
			s.logger.Debug("task status poll failed", "task_id", taskID, "attempt", i+1, "error", err)
		} else if status.Terminal() {
			if status.Failed() {
				reason := status.Error
				if reason == "" {
					reason = "the task reported status " + status.Status
				}
				return fmt.Sprintf("The expert '%s' failed to answer: %s", s.profile.Tag, reason), false, nil
			}
			text := status.FinalText()
			if text == "" {
				text = fmt.Sprintf("The expert '%s' completed without producing a response.", s.profile.Tag)
				return text, false, nil
			}
			return text, true, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	budget := time.Duration(s.maxPolls) * s.pollInterval
	return fmt.Sprintf("The expert '%s' did not respond within the allotted time (%s).", s.profile.Tag, budget), false, nil
}

// truncate shortens s to at most limit bytes without splitting a rune, so
// event previews stay valid UTF-8 when marshalled.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
