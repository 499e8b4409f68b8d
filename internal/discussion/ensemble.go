package discussion

import (
	"context"
	"strings"

	"google.golang.org/adk/agent"

	"agora/internal/agents"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

const teamUserID = "discussion_team"

// Team is the pro/con/leader debate ensemble backed by an ADK sequential agent.
type Team struct {
	runner AgentRunner
	agent  agent.Agent
	log    *logger.Logger
}

// NewTeam wraps the team agent built by agents.Factory.DiscussionTeam.
func NewTeam(runner AgentRunner, team agent.Agent) *Team {
	return &Team{
		runner: runner,
		agent:  team,
		log:    logger.Get().With("component", "discussion_team"),
	}
}

// Invoke runs one round and returns every member's contribution as a transcript.
func (t *Team) Invoke(ctx context.Context, prompt string) (string, error) {
	res, err := t.runner.Invoke(ctx, t.agent, teamUserID, prompt)
	if err != nil {
		return "", err
	}

	transcript := FormatTranscript(res.Messages)
	if transcript == "" {
		return "", errors.ErrEmptyTranscript
	}

	t.log.Debugw("Discussion team round complete", "messages", len(res.Messages), "chars", len(transcript))
	return transcript, nil
}

// FormatTranscript renders messages as "[author]\ntext" blocks separated by blank lines.
func FormatTranscript(msgs []agents.Message) string {
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, "["+m.Author+"]\n"+text)
	}
	return strings.Join(blocks, "\n\n")
}
