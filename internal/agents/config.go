package agents

// AgentConfig captures how a single agent is built.
type AgentConfig struct {
	Type        AgentType
	Description string
	Instruction string
	// UseTools attaches the database and knowledge tools.
	UseTools bool
}

// Name returns the ADK agent name. Transcript blocks are labelled with it.
func (c AgentConfig) Name() string {
	return string(c.Type)
}

// DefaultAgentConfigs holds every single-model agent of the workflow.
var DefaultAgentConfigs = map[AgentType]AgentConfig{
	AgentIntent: {
		Type:        AgentIntent,
		Description: "Classifies the user's intent and plans which agents to enable",
		Instruction: intentInstruction,
	},
	AgentDB: {
		Type:        AgentDB,
		Description: "Looks up business databases and the knowledge base with tools",
		Instruction: dbInstruction,
		UseTools:    true,
	},
	AgentOutput: {
		Type:        AgentOutput,
		Description: "Turns the collected results into the final text reply",
		Instruction: outputInstruction,
	},
	AgentPro: {
		Type:        AgentPro,
		Description: "Supports the user's position with evidence and theory",
		Instruction: proInstruction + teamGuidance,
	},
	AgentCon: {
		Type:        AgentCon,
		Description: "Challenges the position and points out weaknesses",
		Instruction: conInstruction + teamGuidance,
	},
	AgentLeader: {
		Type:        AgentLeader,
		Description: "Steers and summarizes the discussion without taking sides",
		Instruction: leaderInstruction + teamGuidance,
	},
	AgentJudge: {
		Type:        AgentJudge,
		Description: "Scores a discussion result from 0 to 10",
		Instruction: judgeInstruction,
	},
}
