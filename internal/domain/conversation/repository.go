package conversation

import "context"

// Repository persists conversation turns.
type Repository interface {
	Create(ctx context.Context, turn *Turn) error
	// Recent returns the newest limit turns of a session, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]*Turn, error)
	Sessions(ctx context.Context, userID string) ([]*SessionSummary, error)
}
