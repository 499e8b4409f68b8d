package agents

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"

	"agora/pkg/errors"
	"agora/pkg/logger"
)

// FactoryDeps gathers external dependencies needed to instantiate agents.
type FactoryDeps struct {
	Model model.LLM
	// Tools are attached to agents with UseTools set.
	Tools []tool.Tool
}

// Factory creates configured ADK agents.
type Factory struct {
	model model.LLM
	tools []tool.Tool
	log   *logger.Logger
}

// NewFactory builds an agent factory with required dependencies.
func NewFactory(deps FactoryDeps) (*Factory, error) {
	if deps.Model == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model is required")
	}

	return &Factory{
		model: deps.Model,
		tools: deps.Tools,
		log:   logger.Get().With("component", "agent_factory"),
	}, nil
}

// CreateAgent constructs a single ADK agent from a config.
func (f *Factory) CreateAgent(cfg AgentConfig) (agent.Agent, error) {
	var tools []tool.Tool
	if cfg.UseTools {
		tools = f.tools
	}

	ag, err := llmagent.New(llmagent.Config{
		Name:            cfg.Name(),
		Description:     cfg.Description,
		Model:           f.model,
		Instruction:     cfg.Instruction,
		Tools:           tools,
		IncludeContents: llmagent.IncludeContentsDefault,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create agent %s", cfg.Type)
	}
	return ag, nil
}

// Create builds the default agent of the given type.
func (f *Factory) Create(t AgentType) (agent.Agent, error) {
	cfg, ok := DefaultAgentConfigs[t]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "agent type %s", t)
	}
	return f.CreateAgent(cfg)
}

// DiscussionTeam builds the debate ensemble: pro, then con, then leader.
// Each member sees the earlier members' turns through the shared session.
func (f *Factory) DiscussionTeam() (agent.Agent, error) {
	members := make([]agent.Agent, 0, 3)
	for _, t := range []AgentType{AgentPro, AgentCon, AgentLeader} {
		ag, err := f.Create(t)
		if err != nil {
			return nil, err
		}
		members = append(members, ag)
	}

	team, err := sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        string(AgentDiscussionTeam),
			Description: "Pro, con and leader agents discussing one topic in turn",
			SubAgents:   members,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create discussion team")
	}
	return team, nil
}

// CreateDefaultRegistry builds every workflow agent plus the discussion team.
// Members of the team are separate instances from the registered pro/con/leader
// agents since an ADK agent can only have one parent.
func (f *Factory) CreateDefaultRegistry() (*Registry, error) {
	reg := NewRegistry()

	for _, t := range []AgentType{AgentIntent, AgentDB, AgentOutput, AgentJudge} {
		ag, err := f.Create(t)
		if err != nil {
			return nil, err
		}
		reg.Register(t, ag)
	}

	team, err := f.DiscussionTeam()
	if err != nil {
		return nil, err
	}
	reg.Register(AgentDiscussionTeam, team)

	f.log.Infow("Agents created", "agents", reg.List(), "tools", len(f.tools))
	return reg, nil
}
