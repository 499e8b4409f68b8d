package agents

// AgentType enumerates the agents of the chat workflow.
type AgentType string

const (
	AgentIntent AgentType = "intent_agent"
	AgentDB     AgentType = "db_agent"
	AgentOutput AgentType = "output_agent"

	AgentPro    AgentType = "pro_agent"
	AgentCon    AgentType = "con_agent"
	AgentLeader AgentType = "leader_agent"
	AgentJudge  AgentType = "judge_agent"

	AgentDiscussionTeam AgentType = "discussion_team"
)

// Message is one agent's visible text output during an invocation.
type Message struct {
	Author string
	Text   string
}

// Result is the collected output of an agent invocation.
type Result struct {
	// Text is the last non-empty message, the agent's final answer.
	Text     string
	Messages []Message

	PromptTokens     int
	CompletionTokens int
}
