package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Intent
	}{
		{
			name: "plain json",
			in:   `{"enable_db_agent": true, "enable_discussion_team": false, "intent_summary": "count users"}`,
			want: Intent{EnableDBAgent: true, IntentSummary: "count users"},
		},
		{
			name: "json wrapped in prose and fences",
			in:   "Sure:\n```json\n{\"enable_discussion_team\": true, \"intent_summary\": \"debate\"}\n```\nDone.",
			want: Intent{EnableDiscussionTeam: true, IntentSummary: "debate"},
		},
		{
			name: "missing summary",
			in:   `{"enable_db_agent": true}`,
			want: Intent{EnableDBAgent: true, IntentSummary: noClearIntent},
		},
		{
			name: "no json",
			in:   "  just chatting  ",
			want: Intent{IntentSummary: "just chatting"},
		},
		{
			name: "broken json",
			in:   `{"enable_db_agent": tru}`,
			want: Intent{IntentSummary: `{"enable_db_agent": tru}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntent(tt.in))
		})
	}
}
