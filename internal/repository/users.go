package repository

import (
	"context"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/store"
)

// UserRepository stores Plex identities keyed by provider id.
type UserRepository struct {
	store store.Store
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

func (r *UserRepository) load(ctx context.Context) (map[string]models.User, error) {
	return store.Load(ctx, r.store, store.DocUsers, newUsers)
}

// FindBySessionToken returns the user bound to the token.
func (r *UserRepository) FindBySessionToken(ctx context.Context, token string) (models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return models.User{}, err
	}

	for _, u := range users {
		if u.SessionToken != "" && u.SessionToken == token {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByUsername returns the first user with the given username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return models.User{}, err
	}

	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByID returns the user with the provider id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return models.User{}, err
	}

	u, ok := users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

// RecordLogin creates or refreshes the user identified by id. An existing
// background is kept; new users start with defaultBackground.
func (r *UserRepository) RecordLogin(ctx context.Context, id, username, plexToken, sessionToken, defaultBackground string) (models.User, error) {
	var saved models.User
	err := store.Mutate(ctx, r.store, store.DocUsers, newUsers, func(users *map[string]models.User) error {
		background := defaultBackground
		if existing, ok := (*users)[id]; ok && existing.Background != "" {
			background = existing.Background
		}

		saved = models.User{
			ID:           id,
			Username:     username,
			PlexToken:    plexToken,
			SessionToken: sessionToken,
			Background:   background,
		}
		(*users)[id] = saved
		return nil
	})
	return saved, err
}

// DeleteBySessionToken removes the user bound to the token, if any.
func (r *UserRepository) DeleteBySessionToken(ctx context.Context, token string) error {
	return store.Mutate(ctx, r.store, store.DocUsers, newUsers, func(users *map[string]models.User) error {
		for id, u := range *users {
			if u.SessionToken == token {
				delete(*users, id)
			}
		}
		return nil
	})
}

// UpdateBackground sets the background of the first user with the username.
func (r *UserRepository) UpdateBackground(ctx context.Context, username, background string) error {
	return store.Mutate(ctx, r.store, store.DocUsers, newUsers, func(users *map[string]models.User) error {
		for id, u := range *users {
			if u.Username == username {
				u.Background = background
				(*users)[id] = u
				return nil
			}
		}
		return ErrNotFound
	})
}
