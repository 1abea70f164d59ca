package service

import (
	"context"
	"fmt"

	"edms/internal/model"
)

// UserService exposes the user directory.
type UserService interface {
	// List returns every user except the caller, for picking assignees and reviewers.
	List(ctx context.Context, actorID string) ([]model.User, error)
}

type userService struct {
	Dependencies
}

func NewUserService(deps Dependencies) UserService {
	return &userService{Dependencies: deps.withDefaults()}
}

func (s *userService) List(ctx context.Context, actorID string) ([]model.User, error) {
	users, err := s.Users.List(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
