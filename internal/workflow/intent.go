package workflow

import (
	"encoding/json"
	"strings"
)

const noClearIntent = "no clear intent recognized"

// Intent is the routing decision of the intent agent.
type Intent struct {
	EnableDBAgent        bool   `json:"enable_db_agent"`
	EnableDiscussionTeam bool   `json:"enable_discussion_team"`
	IntentSummary        string `json:"intent_summary"`
}

// ParseIntent reads the JSON object between the first '{' and the last '}'
// of text. When no object can be decoded both steps stay off and the raw
// text becomes the summary.
func ParseIntent(text string) Intent {
	raw := text
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		raw = text[start : end+1]
	}

	var intent struct {
		EnableDBAgent        *bool   `json:"enable_db_agent"`
		EnableDiscussionTeam *bool   `json:"enable_discussion_team"`
		IntentSummary        *string `json:"intent_summary"`
	}
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return Intent{IntentSummary: strings.TrimSpace(text)}
	}

	res := Intent{IntentSummary: noClearIntent}
	if intent.EnableDBAgent != nil {
		res.EnableDBAgent = *intent.EnableDBAgent
	}
	if intent.EnableDiscussionTeam != nil {
		res.EnableDiscussionTeam = *intent.EnableDiscussionTeam
	}
	if intent.IntentSummary != nil {
		res.IntentSummary = *intent.IntentSummary
	}
	return res
}
