package agents

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"agora/pkg/errors"
)

// scriptedLLM answers every request with "reply N" and remembers system prompts.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	systems []string
	err     error
}

func (m *scriptedLLM) Name() string { return "scripted" }

func (m *scriptedLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		m.mu.Lock()
		m.calls++
		n := m.calls
		if req.Config != nil && req.Config.SystemInstruction != nil {
			var parts []string
			for _, p := range req.Config.SystemInstruction.Parts {
				parts = append(parts, p.Text)
			}
			m.systems = append(m.systems, strings.Join(parts, "\n"))
		}
		err := m.err
		m.mu.Unlock()

		if err != nil {
			yield(nil, err)
			return
		}
		yield(&model.LLMResponse{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: fmt.Sprintf("reply %d", n)}},
			},
			TurnComplete: true,
		}, nil)
	}
}

func TestDefaultAgentConfigs(t *testing.T) {
	for _, typ := range []AgentType{AgentIntent, AgentDB, AgentOutput, AgentPro, AgentCon, AgentLeader, AgentJudge} {
		cfg, ok := DefaultAgentConfigs[typ]
		require.True(t, ok, typ)
		assert.Equal(t, typ, cfg.Type)
		assert.NotEmpty(t, cfg.Instruction, typ)
		assert.NotEmpty(t, cfg.Description, typ)
		assert.Equal(t, typ == AgentDB, cfg.UseTools, typ)
	}

	assert.Contains(t, DefaultAgentConfigs[AgentIntent].Instruction, "enable_discussion_team")
	assert.Contains(t, DefaultAgentConfigs[AgentPro].Instruction, "Team guidance")
	assert.Contains(t, DefaultAgentConfigs[AgentJudge].Instruction, "0 to 10")
}

func TestNewFactoryRequiresModel(t *testing.T) {
	_, err := NewFactory(FactoryDeps{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestFactoryCreateUnknownType(t *testing.T) {
	f, err := NewFactory(FactoryDeps{Model: &scriptedLLM{}})
	require.NoError(t, err)

	_, err = f.Create("nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFactoryCreateDefaultRegistry(t *testing.T) {
	f, err := NewFactory(FactoryDeps{Model: &scriptedLLM{}})
	require.NoError(t, err)

	reg, err := f.CreateDefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []AgentType{AgentDB, AgentDiscussionTeam, AgentIntent, AgentJudge, AgentOutput}, reg.List())

	team, err := reg.Require(AgentDiscussionTeam)
	require.NoError(t, err)
	assert.Equal(t, "discussion_team", team.Name())

	var names []string
	for _, sub := range team.SubAgents() {
		names = append(names, sub.Name())
	}
	assert.Equal(t, []string{"pro_agent", "con_agent", "leader_agent"}, names)

	_, err = reg.Require(AgentPro)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestInvokerSingleAgent(t *testing.T) {
	llm := &scriptedLLM{}
	f, err := NewFactory(FactoryDeps{Model: llm})
	require.NoError(t, err)
	intent, err := f.Create(AgentIntent)
	require.NoError(t, err)

	inv := NewInvoker("agora_test", 0)
	res, err := inv.Invoke(context.Background(), intent, "u1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "reply 1", res.Text)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "intent_agent", res.Messages[0].Author)
	require.NotEmpty(t, llm.systems)
	assert.Contains(t, llm.systems[0], "intent recognition")
}

func TestInvokerDiscussionTeamCollectsEveryMember(t *testing.T) {
	llm := &scriptedLLM{}
	f, err := NewFactory(FactoryDeps{Model: llm})
	require.NoError(t, err)
	team, err := f.DiscussionTeam()
	require.NoError(t, err)

	inv := NewInvoker("agora_test", 0)
	res, err := inv.Invoke(context.Background(), team, "u1", "Is remote work more productive?")
	require.NoError(t, err)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, "pro_agent", res.Messages[0].Author)
	assert.Equal(t, "con_agent", res.Messages[1].Author)
	assert.Equal(t, "leader_agent", res.Messages[2].Author)
	assert.Equal(t, "reply 3", res.Text)
}

func TestInvokerModelError(t *testing.T) {
	llm := &scriptedLLM{err: errors.ErrUnavailable}
	f, err := NewFactory(FactoryDeps{Model: llm})
	require.NoError(t, err)
	output, err := f.Create(AgentOutput)
	require.NoError(t, err)

	_, err = NewInvoker("agora_test", 0).Invoke(context.Background(), output, "u1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_agent")
}

func TestInvokerRequiresAgent(t *testing.T) {
	_, err := NewInvoker("agora_test", 0).Invoke(context.Background(), nil, "u1", "hi")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
