package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/finearr/finearr/internal/repository"
)

// BackgroundStore persists user preferences.
type BackgroundStore interface {
	UpdateBackground(ctx context.Context, username, background string) error
}

// UserService manages user preferences.
type UserService struct {
	users BackgroundStore
}

// NewUserService creates a UserService.
func NewUserService(users BackgroundStore) *UserService {
	return &UserService{users: users}
}

// UpdateBackground sets the background of the user with the username.
func (s *UserService) UpdateBackground(ctx context.Context, username, background string) error {
	if username == "" {
		return &ValidationError{Message: "Username required"}
	}

	err := s.users.UpdateBackground(ctx, username, background)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: "user", ID: username}
	}
	if err != nil {
		return fmt.Errorf("update background: %w", err)
	}
	return nil
}
