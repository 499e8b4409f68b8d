package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Turn is one question and answer exchanged in a chat session.
type Turn struct {
	ID               uuid.UUID `db:"id" json:"id"`
	SessionID        string    `db:"session_id" json:"session_id"`
	UserID           string    `db:"user_id" json:"user_id"`
	Query            string    `db:"query" json:"query"`
	IntentSummary    string    `db:"intent_summary" json:"intent_summary"`
	UsedDatabase     bool      `db:"used_database" json:"used_database"`
	UsedDiscussion   bool      `db:"used_discussion" json:"used_discussion"`
	DiscussionScore  *float64  `db:"discussion_score" json:"discussion_score,omitempty"`
	DiscussionRounds int       `db:"discussion_rounds" json:"discussion_rounds"`
	Answer           string    `db:"answer" json:"answer"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// SessionSummary describes one chat session of a user.
type SessionSummary struct {
	SessionID  string    `db:"session_id" json:"session_id"`
	Turns      int       `db:"turns" json:"turns"`
	LastTurnAt time.Time `db:"last_turn_at" json:"last_turn_at"`
}
