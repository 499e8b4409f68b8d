package discussion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/adk/agent"

	"agora/internal/agents"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// JudgeResult is what a judge returns for one transcript. The score is carried
// either directly or nested one level under "result"; use ScoreOf to read it.
type JudgeResult interface {
	judgeResult()
}

// DirectScore is {"score": n, "reason": "..."}.
type DirectScore struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

// WrappedScore is {"result": {"score": n, "reason": "..."}}.
type WrappedScore struct {
	Result *ScoreDetail `json:"result"`
}

// ScoreDetail is the nested payload of WrappedScore.
type ScoreDetail struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

func (DirectScore) judgeResult()  {}
func (WrappedScore) judgeResult() {}

// ScoreOf extracts the numeric score. ok is false when the result carries none.
func ScoreOf(r JudgeResult) (score float64, ok bool) {
	switch v := r.(type) {
	case DirectScore:
		if v.Score != nil {
			return *v.Score, true
		}
	case *DirectScore:
		if v != nil && v.Score != nil {
			return *v.Score, true
		}
	case WrappedScore:
		if v.Result != nil && v.Result.Score != nil {
			return *v.Result.Score, true
		}
	case *WrappedScore:
		if v != nil && v.Result != nil && v.Result.Score != nil {
			return *v.Result.Score, true
		}
	}
	return 0, false
}

// ReasonOf returns the judge's explanation, if any.
func ReasonOf(r JudgeResult) string {
	switch v := r.(type) {
	case DirectScore:
		return v.Reason
	case WrappedScore:
		if v.Result != nil {
			return v.Result.Reason
		}
	}
	return ""
}

// DefaultCriteria is what the judge grades a discussion against.
const DefaultCriteria = `A good discussion result:
1. States its points clearly with rigorous logic
2. Argues them fully, backed by solid evidence and theory
3. Considers multiple angles and factors
4. Goes deep, showing a real exchange between the supporting and opposing sides
5. Reaches a reasonable, constructive conclusion
6. Is of high overall quality and answers the user's question`

// ParseJudgeResult reads the judge's reply. It looks at the text between the first
// '{' and the last '}', so code fences and surrounding prose are tolerated.
// A reply without a usable score yields a DirectScore with a nil Score.
func ParseJudgeResult(text string) JudgeResult {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return DirectScore{Reason: strings.TrimSpace(text)}
	}

	var raw struct {
		Score  any    `json:"score"`
		Reason string `json:"reason"`
		Result *struct {
			Score  any    `json:"score"`
			Reason string `json:"reason"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return DirectScore{Reason: strings.TrimSpace(text)}
	}

	if score := scoreValue(raw.Score); score != nil {
		return DirectScore{Score: score, Reason: raw.Reason}
	}
	if raw.Result != nil {
		return WrappedScore{Result: &ScoreDetail{Score: scoreValue(raw.Result.Score), Reason: raw.Result.Reason}}
	}
	return DirectScore{Reason: raw.Reason}
}

// scoreValue accepts a JSON number or numeric string and clamps it to 0..10.
func scoreValue(v any) *float64 {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if f < 0 {
		f = 0
	}
	if f > MaxScore {
		f = MaxScore
	}
	return &f
}

// AgentRunner runs an ADK agent on a single prompt.
type AgentRunner interface {
	Invoke(ctx context.Context, ag agent.Agent, userID, prompt string) (*agents.Result, error)
}

const judgeUserID = "discussion_judge"

// LLMJudge scores transcripts with the judge agent.
type LLMJudge struct {
	runner   AgentRunner
	agent    agent.Agent
	criteria string
	log      *logger.Logger
}

// NewLLMJudge creates a judge. Empty criteria fall back to DefaultCriteria.
func NewLLMJudge(runner AgentRunner, judgeAgent agent.Agent, criteria string) *LLMJudge {
	if criteria == "" {
		criteria = DefaultCriteria
	}
	return &LLMJudge{
		runner:   runner,
		agent:    judgeAgent,
		criteria: criteria,
		log:      logger.Get().With("component", "discussion_judge"),
	}
}

// Evaluate scores output as an answer to input.
func (j *LLMJudge) Evaluate(ctx context.Context, input, output string) (JudgeResult, error) {
	res, err := j.runner.Invoke(ctx, j.agent, judgeUserID, j.prompt(input, output))
	if err != nil {
		return nil, errors.Wrap(err, "judge agent")
	}

	result := ParseJudgeResult(res.Text)
	if score, ok := ScoreOf(result); ok {
		j.log.Debugw("Judge scored discussion", "score", score, "reason", truncate(ReasonOf(result), 120))
	} else {
		j.log.Warnw("Judge reply carried no score", "reply", truncate(res.Text, 200))
	}
	return result, nil
}

func (j *LLMJudge) prompt(input, output string) string {
	return fmt.Sprintf(`Evaluate the discussion below against the criteria.

Criteria:
%s

User question:
%s

Discussion output:
%s

Reply with JSON only: {"score": <number from 0 to 10>, "reason": "<one or two sentences>"}`,
		j.criteria, input, output)
}
