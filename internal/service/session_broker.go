package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/repository"
	"github.com/finearr/finearr/internal/service/plex"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionTokenPrefix = "sess_"

// PlexProvider is the subset of the plex.tv API used for sign-in.
type PlexProvider interface {
	CreatePin(ctx context.Context) (plex.Pin, error)
	GetPin(ctx context.Context, id string) (plex.Pin, error)
	AuthURL(code string) string
	ValidateToken(ctx context.Context, token string) (plex.Account, error)
}

// UserStore persists Plex identities.
type UserStore interface {
	FindBySessionToken(ctx context.Context, token string) (models.User, error)
	RecordLogin(ctx context.Context, id, username, plexToken, sessionToken, defaultBackground string) (models.User, error)
	DeleteBySessionToken(ctx context.Context, token string) error
}

// SessionBroker runs the Plex PIN handshake and mints session tokens. It
// keeps no per-pin state; callers own the polling loop.
type SessionBroker struct {
	plex              PlexProvider
	users             UserStore
	defaultBackground string
	newToken          func() string
	log               *zap.Logger
}

// NewSessionBroker creates a SessionBroker.
func NewSessionBroker(provider PlexProvider, users UserStore, defaultBackground string) *SessionBroker {
	return &SessionBroker{
		plex:              provider,
		users:             users,
		defaultBackground: defaultBackground,
		newToken:          func() string { return sessionTokenPrefix + uuid.NewString() },
		log:               logger.Named("plex"),
	}
}

func plexUnavailable(err error) error {
	return &UpstreamError{Service: "plex", Cause: err}
}

// Issue creates a PIN and the URL where the user approves it.
func (b *SessionBroker) Issue(ctx context.Context) (models.PinResponse, error) {
	pin, err := b.plex.CreatePin(ctx)
	if err != nil {
		b.log.Warn("Failed to create Plex pin", zap.Error(err))
		return models.PinResponse{}, plexUnavailable(err)
	}

	return models.PinResponse{
		ID:        string(pin.ID),
		Code:      pin.Code,
		AuthURL:   b.plex.AuthURL(pin.Code),
		ExpiresIn: pin.ExpiresIn,
	}, nil
}

// Check reports whether the PIN has been approved. A nil AuthToken means
// not yet.
func (b *SessionBroker) Check(ctx context.Context, id string) (models.PinStatus, error) {
	pin, err := b.plex.GetPin(ctx, id)
	if errors.Is(err, plex.ErrPinNotFound) {
		return models.PinStatus{}, &NotFoundError{Resource: "pin", ID: id}
	}
	if err != nil {
		b.log.Warn("Failed to check Plex pin", zap.Error(err), zap.String("pinId", id))
		return models.PinStatus{}, plexUnavailable(err)
	}

	return models.PinStatus{AuthToken: pin.AuthToken, ExpiresIn: pin.ExpiresIn}, nil
}

// Login validates a Plex token, upserts the user and mints a new session
// token, replacing any previous one.
func (b *SessionBroker) Login(ctx context.Context, plexToken string) (string, models.User, error) {
	if plexToken == "" {
		return "", models.User{}, &ValidationError{Message: "Missing plexToken"}
	}

	account, err := b.plex.ValidateToken(ctx, plexToken)
	if errors.Is(err, plex.ErrInvalidToken) {
		return "", models.User{}, &AuthenticationError{Message: "Invalid Plex token"}
	}
	if err != nil {
		b.log.Error("Failed to validate Plex token", zap.Error(err))
		return "", models.User{}, plexUnavailable(err)
	}

	sessionToken := b.newToken()
	user, err := b.users.RecordLogin(ctx, account.ID, account.Username, plexToken, sessionToken, b.defaultBackground)
	if err != nil {
		return "", models.User{}, fmt.Errorf("record login: %w", err)
	}

	b.log.Info("Plex user signed in",
		zap.String("userId", user.ID),
		zap.String("username", user.Username),
	)
	return sessionToken, user, nil
}

// AutoLogin resumes a session. When Plex no longer accepts the stored
// credential the user is deleted; when Plex is unreachable the user is kept.
func (b *SessionBroker) AutoLogin(ctx context.Context, sessionToken string) (models.User, error) {
	if sessionToken == "" {
		return models.User{}, &ValidationError{Message: "Missing sessionToken"}
	}

	user, err := b.users.FindBySessionToken(ctx, sessionToken)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, &AuthenticationError{Message: "Invalid session"}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find session: %w", err)
	}

	_, err = b.plex.ValidateToken(ctx, user.PlexToken)
	if errors.Is(err, plex.ErrInvalidToken) {
		if delErr := b.users.DeleteBySessionToken(ctx, sessionToken); delErr != nil {
			return models.User{}, fmt.Errorf("delete revoked user: %w", delErr)
		}
		b.log.Info("Plex credential revoked, user removed",
			zap.String("userId", user.ID),
			zap.String("username", user.Username),
		)
		return models.User{}, &AuthenticationError{Message: "Plex account not found"}
	}
	if err != nil {
		b.log.Warn("Plex unreachable during auto-login", zap.Error(err), zap.String("userId", user.ID))
		return models.User{}, plexUnavailable(err)
	}

	return user, nil
}

// Resolve returns the user bound to a session token without contacting Plex.
func (b *SessionBroker) Resolve(ctx context.Context, sessionToken string) (models.User, error) {
	user, err := b.users.FindBySessionToken(ctx, sessionToken)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, &AuthenticationError{Message: "Invalid session"}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find session: %w", err)
	}
	return user, nil
}
