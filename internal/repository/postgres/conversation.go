package postgres

import (
	"context"

	"agora/internal/domain/conversation"
	"agora/pkg/errors"
)

// Compile-time check
var _ conversation.Repository = (*ConversationRepository)(nil)

// ConversationRepository implements conversation.Repository using sqlx
type ConversationRepository struct {
	db DBTX
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a turn
func (r *ConversationRepository) Create(ctx context.Context, t *conversation.Turn) error {
	query := `
		INSERT INTO conversation_turns (
			id, session_id, user_id, query, intent_summary,
			used_database, used_discussion, discussion_score, discussion_rounds,
			answer, created_at
		) VALUES (
			:id, :session_id, :user_id, :query, :intent_summary,
			:used_database, :used_discussion, :discussion_score, :discussion_rounds,
			:answer, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return errors.Wrap(err, "insert turn")
	}
	return nil
}

// Recent returns the newest turns of a session, newest first
func (r *ConversationRepository) Recent(ctx context.Context, sessionID string, limit int) ([]*conversation.Turn, error) {
	var turns []*conversation.Turn

	query := `
		SELECT * FROM conversation_turns
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &turns, query, sessionID, limit); err != nil {
		return nil, errors.Wrap(err, "recent turns")
	}
	return turns, nil
}

// Sessions summarizes the sessions of a user, most recent first
func (r *ConversationRepository) Sessions(ctx context.Context, userID string) ([]*conversation.SessionSummary, error) {
	var res []*conversation.SessionSummary

	query := `
		SELECT session_id, COUNT(*) AS turns, MAX(created_at) AS last_turn_at
		FROM conversation_turns
		WHERE user_id = $1
		GROUP BY session_id
		ORDER BY last_turn_at DESC`

	if err := r.db.SelectContext(ctx, &res, query, userID); err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return res, nil
}
