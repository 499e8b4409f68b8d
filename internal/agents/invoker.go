package agents

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"agora/internal/metrics"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// Invoker runs agents one prompt at a time. Every invocation gets a fresh
// in-memory ADK session that is deleted afterwards, so concurrent invocations
// never share history.
type Invoker struct {
	appName  string
	sessions adksession.Service
	timeout  time.Duration

	mu      sync.Mutex
	runners map[string]*runner.Runner

	log *logger.Logger
}

// NewInvoker creates an invoker. timeout bounds each invocation; zero disables it.
func NewInvoker(appName string, timeout time.Duration) *Invoker {
	return &Invoker{
		appName:  appName,
		sessions: adksession.InMemoryService(),
		timeout:  timeout,
		runners:  make(map[string]*runner.Runner),
		log:      logger.Get().With("component", "agent_invoker"),
	}
}

// Invoke sends prompt to ag and collects the text every agent produced.
func (i *Invoker) Invoke(ctx context.Context, ag agent.Agent, userID, prompt string) (res *Result, err error) {
	if ag == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "agent is required")
	}

	start := time.Now()
	name := ag.Name()
	defer func() {
		metrics.RecordAgentCall(name, time.Since(start), err)
	}()

	r, err := i.runnerFor(ag)
	if err != nil {
		return nil, err
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	sessionID := uuid.NewString()
	if _, err = i.sessions.Create(ctx, &adksession.CreateRequest{
		AppName:   i.appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return nil, errors.Wrap(err, "create agent session")
	}
	defer func() {
		// the request context may already be done here
		if derr := i.sessions.Delete(context.Background(), &adksession.DeleteRequest{
			AppName:   i.appName,
			UserID:    userID,
			SessionID: sessionID,
		}); derr != nil {
			i.log.Debugw("Failed to delete agent session", "session", sessionID, "error", derr)
		}
	}()

	msg := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}

	res = &Result{}
	for event, runErr := range r.Run(ctx, userID, sessionID, msg, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if runErr != nil {
			err = errors.Wrapf(runErr, "agent %s", name)
			return nil, err
		}
		if event == nil || event.LLMResponse.Partial {
			continue
		}

		if event.UsageMetadata != nil {
			res.PromptTokens += int(event.UsageMetadata.PromptTokenCount)
			res.CompletionTokens += int(event.UsageMetadata.CandidatesTokenCount)
		}

		if event.LLMResponse.ErrorMessage != "" {
			i.log.Warnw("Agent event carried an error", "agent", event.Author, "error", event.LLMResponse.ErrorMessage)
		}

		text := eventText(event.LLMResponse.Content)
		if text == "" || event.Author == "user" {
			continue
		}
		res.Messages = append(res.Messages, Message{Author: event.Author, Text: text})
		res.Text = text
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			err = errors.Wrapf(errors.ErrTimeout, "agent %s", name)
		} else {
			err = errors.Wrapf(ctxErr, "agent %s", name)
		}
		return nil, err
	}

	i.log.Debugw("Agent invocation complete",
		"agent", name,
		"messages", len(res.Messages),
		"prompt_tokens", res.PromptTokens,
		"completion_tokens", res.CompletionTokens,
		"duration", time.Since(start),
	)
	return res, nil
}

func (i *Invoker) runnerFor(ag agent.Agent) (*runner.Runner, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if r, ok := i.runners[ag.Name()]; ok {
		return r, nil
	}

	r, err := runner.New(runner.Config{
		AppName:        i.appName,
		Agent:          ag,
		SessionService: i.sessions,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create runner for %s", ag.Name())
	}
	i.runners[ag.Name()] = r
	return r, nil
}

func eventText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
