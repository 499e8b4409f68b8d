package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agora/pkg/errors"
	"agora/pkg/logger"
)

const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 100
)

// Service records chat turns and serves session history.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a conversation service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Get().With("component", "conversation")}
}

// Record stores turn, assigning an id and timestamp when missing.
func (s *Service) Record(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return errors.ErrInvalidInput
	}
	if turn.SessionID == "" {
		return errors.NewValidationError("session_id", "session id is required", turn.SessionID)
	}
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, turn); err != nil {
		return errors.Wrap(err, "record turn")
	}
	return nil
}

// History returns the last limit turns of a session in chronological order.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("session_id", "session id is required", sessionID)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	turns, err := s.repo.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Sessions lists the sessions of a user, most recent first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*SessionSummary, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user_id", "user id is required", userID)
	}
	res, err := s.repo.Sessions(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return res, nil
}
