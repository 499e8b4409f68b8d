package kafka

import "time"

// Topic names, prefixed with KAFKA_TOPIC_PREFIX at publish time
const (
	TopicChatCompleted       = "chat.completed"
	TopicDiscussionCompleted = "discussion.completed"
)

// ChatCompletedEvent is published after a chat turn is answered and stored.
type ChatCompletedEvent struct {
	TurnID         string    `json:"turn_id"`
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	UsedDatabase   bool      `json:"used_database"`
	UsedDiscussion bool      `json:"used_discussion"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// DiscussionCompletedEvent is published after every discussion run, including failed ones.
type DiscussionCompletedEvent struct {
	SessionID        string    `json:"session_id,omitempty"`
	Query            string    `json:"query"`
	Outcome          string    `json:"outcome"`
	RoundsRun        int       `json:"rounds_run"`
	Score            *float64  `json:"score,omitempty"`
	ReachedThreshold bool      `json:"reached_threshold"`
	Error            string    `json:"error,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}
