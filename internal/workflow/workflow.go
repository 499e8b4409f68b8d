package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"

	"agora/internal/adapters/kafka"
	"agora/internal/agents"
	"agora/internal/discussion"
	"agora/internal/domain/conversation"
	"agora/pkg/errors"
	"agora/pkg/logger"
	"agora/pkg/templates"
)

const (
	tmplIntent   = "workflow/intent"
	tmplHistory  = "workflow/history"
	tmplDBLookup = "workflow/db_lookup"
	tmplOutput   = "workflow/output"

	evaluationFailed = "discussion evaluation failed"
)

// AgentRunner invokes one ADK agent with a prompt.
type AgentRunner interface {
	Invoke(ctx context.Context, ag agent.Agent, userID, prompt string) (*agents.Result, error)
}

// Discusser runs the multi-round discussion.
type Discusser interface {
	Run(ctx context.Context, query, related string) (*discussion.Outcome, error)
}

// TurnStore records answered turns and serves recent history.
type TurnStore interface {
	Record(ctx context.Context, turn *conversation.Turn) error
	History(ctx context.Context, sessionID string, limit int) ([]*conversation.Turn, error)
}

// EventSink receives completion events.
type EventSink interface {
	ChatCompleted(ctx context.Context, event kafka.ChatCompletedEvent)
}

// Agents are the single agents of the workflow.
type Agents struct {
	Intent agent.Agent
	DB     agent.Agent
	Output agent.Agent
}

// Deps gathers the workflow collaborators. Turns and Events are optional.
type Deps struct {
	Runner    AgentRunner
	Agents    Agents
	Discusser Discusser
	Turns     TurnStore
	Events    EventSink
	Templates *templates.Registry

	// HistoryTurns is how many earlier turns of the session the intent and output agents see.
	HistoryTurns int
}

// Request is one user message.
type Request struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// Response is the answer plus how it was produced.
type Response struct {
	TurnID         uuid.UUID           `json:"turn_id"`
	SessionID      string              `json:"session_id"`
	Answer         string              `json:"answer"`
	Intent         Intent              `json:"intent"`
	UsedDatabase   bool                `json:"used_database"`
	UsedDiscussion bool                `json:"used_discussion"`
	Discussion     *discussion.Outcome `json:"discussion,omitempty"`
	DurationMs     int64               `json:"duration_ms"`
}

// Workflow answers a message: intent, optional database lookup, optional
// discussion, then the integrated reply.
type Workflow struct {
	deps Deps
	log  *logger.Logger
}

// New validates deps and builds the workflow.
func New(deps Deps) (*Workflow, error) {
	switch {
	case deps.Runner == nil:
		return nil, errors.Wrap(errors.ErrInvalidInput, "agent runner is required")
	case deps.Agents.Intent == nil || deps.Agents.DB == nil || deps.Agents.Output == nil:
		return nil, errors.Wrap(errors.ErrInvalidInput, "intent, db and output agents are required")
	case deps.Discusser == nil:
		return nil, errors.Wrap(errors.ErrInvalidInput, "discussion controller is required")
	}
	if deps.Templates == nil {
		deps.Templates = templates.Get()
	}
	if err := deps.Templates.Require(tmplIntent, tmplHistory, tmplDBLookup, tmplOutput); err != nil {
		return nil, err
	}
	if deps.HistoryTurns < 0 {
		deps.HistoryTurns = 0
	}

	return &Workflow{deps: deps, log: logger.Get().With("component", "workflow")}, nil
}

// Run answers one message.
func (w *Workflow) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Message == "" {
		return nil, errors.NewValidationError("message", "message is required", req.Message)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	ctx = errors.WithSessionID(ctx, req.SessionID)

	start := time.Now()
	log := w.log.With("session", req.SessionID)
	res := &Response{SessionID: req.SessionID}

	history := w.history(ctx, req.SessionID)

	// intent
	prompt, err := w.deps.Templates.Render(tmplIntent, map[string]any{"History": history, "Question": req.Message})
	if err != nil {
		return nil, err
	}
	intentRes, err := w.deps.Runner.Invoke(ctx, w.deps.Agents.Intent, req.UserID, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "intent recognition")
	}
	res.Intent = ParseIntent(intentRes.Text)
	log.Infow("Intent recognized",
		"db", res.Intent.EnableDBAgent,
		"discussion", res.Intent.EnableDiscussionTeam,
		"summary", res.Intent.IntentSummary,
	)

	// database lookup
	var dbResult string
	if res.Intent.EnableDBAgent {
		res.UsedDatabase = true
		dbResult = w.lookup(ctx, req, res.Intent)
	}

	// discussion
	var discussionResult, evaluation string
	if res.Intent.EnableDiscussionTeam {
		res.UsedDiscussion = true
		related := ""
		if dbResult != "" {
			related = "database lookup result:\n" + dbResult
		}

		outcome, err := w.deps.Discusser.Run(ctx, req.Message, related)
		if err != nil {
			// the controller reports its own fatal failures
			log.Warnw("Discussion failed", "error", err)
			discussionResult = fmt.Sprintf("discussion failed: %v", err)
			evaluation = evaluationFailed
		} else {
			res.Discussion = outcome
			discussionResult = outcome.Transcript
			evaluation = EvaluationNote(outcome)
			log.Infow("Discussion finished", "evaluation", evaluation)
		}
	}

	// integrated reply
	prompt, err = w.deps.Templates.Render(tmplOutput, map[string]any{
		"History":          history,
		"Question":         req.Message,
		"IntentSummary":    res.Intent.IntentSummary,
		"DBResult":         dbResult,
		"DiscussionResult": discussionResult,
		"Evaluation":       evaluation,
	})
	if err != nil {
		return nil, err
	}
	out, err := w.deps.Runner.Invoke(ctx, w.deps.Agents.Output, req.UserID, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "output integration")
	}
	res.Answer = out.Text
	res.DurationMs = time.Since(start).Milliseconds()

	w.record(ctx, req, res)
	return res, nil
}

// lookup runs the DB agent. Failures become the lookup result text.
func (w *Workflow) lookup(ctx context.Context, req Request, intent Intent) string {
	prompt, err := w.deps.Templates.Render(tmplDBLookup, map[string]any{
		"Question":      req.Message,
		"IntentSummary": intent.IntentSummary,
	})
	if err == nil {
		var out *agents.Result
		if out, err = w.deps.Runner.Invoke(ctx, w.deps.Agents.DB, req.UserID, prompt); err == nil {
			return out.Text
		}
	}

	w.log.ErrorwContext(ctx, "Database lookup failed", "session", req.SessionID, "error", err)
	return fmt.Sprintf("database lookup failed: %v", err)
}

func (w *Workflow) history(ctx context.Context, sessionID string) string {
	if w.deps.Turns == nil || w.deps.HistoryTurns == 0 {
		return ""
	}

	turns, err := w.deps.Turns.History(ctx, sessionID, w.deps.HistoryTurns)
	if err != nil {
		w.log.Warnw("Failed to load history", "session", sessionID, "error", err)
		return ""
	}
	if len(turns) == 0 {
		return ""
	}

	text, err := w.deps.Templates.Render(tmplHistory, turns)
	if err != nil {
		w.log.Warnw("Failed to render history", "session", sessionID, "error", err)
		return ""
	}
	return text
}

// record stores the turn and announces it. Neither failure reaches the caller.
func (w *Workflow) record(ctx context.Context, req Request, res *Response) {
	turn := &conversation.Turn{
		ID:             uuid.New(),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		Query:          req.Message,
		IntentSummary:  res.Intent.IntentSummary,
		UsedDatabase:   res.UsedDatabase,
		UsedDiscussion: res.UsedDiscussion,
		Answer:         res.Answer,
	}
	if res.Discussion != nil {
		turn.DiscussionScore = res.Discussion.Score
		turn.DiscussionRounds = res.Discussion.RoundsRun
	}

	if w.deps.Turns != nil {
		if err := w.deps.Turns.Record(ctx, turn); err != nil {
			w.log.ErrorwContext(ctx, "Failed to record turn", "session", req.SessionID, "error", err)
		}
	}
	res.TurnID = turn.ID

	if w.deps.Events != nil {
		w.deps.Events.ChatCompleted(ctx, kafka.ChatCompletedEvent{
			TurnID:         turn.ID.String(),
			SessionID:      req.SessionID,
			UserID:         req.UserID,
			UsedDatabase:   res.UsedDatabase,
			UsedDiscussion: res.UsedDiscussion,
			DurationMs:     res.DurationMs,
			CreatedAt:      time.Now().UTC(),
		})
	}
}

// EvaluationNote summarizes a discussion outcome for the output agent.
func EvaluationNote(o *discussion.Outcome) string {
	if o.Score != nil {
		return fmt.Sprintf("discussion score: %.1f/10, rounds: %d, reached threshold: %t", *o.Score, o.RoundsRun, o.ReachedThreshold)
	}
	return fmt.Sprintf("rounds: %d, reached threshold: %t", o.RoundsRun, o.ReachedThreshold)
}
