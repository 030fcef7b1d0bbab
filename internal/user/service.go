package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/logging"
)

// ErrEmptySelection is returned when an administrative action names no users.
var ErrEmptySelection = errors.New("at least one user id is required")

// AdminStore is the slice of the repository used by administrative actions.
type AdminStore interface {
	ListActive(ctx context.Context) ([]*User, error)
	SetBlocked(ctx context.Context, ids []uuid.UUID, blocked bool) (int64, error)
	MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Service implements listing, blocking and soft deletion of accounts.
type Service struct {
	store  AdminStore
	logger *logging.Logger
}

func NewService(store AdminStore, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// List returns all non-deleted users ordered by last login, newest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	users, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	summaries := make([]Summary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}

	return summaries, nil
}

func (s *Service) Block(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return s.setBlocked(ctx, ids, true)
}

func (s *Service) Unblock(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return s.setBlocked(ctx, ids, false)
}

// Delete soft-deletes the given users. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrEmptySelection
	}

	n, err := s.store.MarkDeleted(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}

	s.logger.Info("users deleted", "requested", len(ids), "affected", n)
	return n, nil
}

func (s *Service) setBlocked(ctx context.Context, ids []uuid.UUID, blocked bool) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrEmptySelection
	}

	n, err := s.store.SetBlocked(ctx, ids, blocked)
	if err != nil {
		return 0, fmt.Errorf("failed to update blocked flag: %w", err)
	}

	s.logger.Info("users blocked flag updated", "blocked", blocked, "requested", len(ids), "affected", n)
	return n, nil
}
