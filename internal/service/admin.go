package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/repository"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid credentials"

// AdminAccounts persists administrator accounts.
type AdminAccounts interface {
	List(ctx context.Context) ([]models.AdminAccount, error)
	Get(ctx context.Context, username string) (models.AdminAccount, error)
	Create(ctx context.Context, account models.AdminAccount) ([]models.AdminAccount, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) ([]models.AdminAccount, error)
	Delete(ctx context.Context, username string) ([]models.AdminAccount, error)
}

// AdminService authenticates administrators and manages their accounts.
// Tokens are HS256 JWTs whose jti must also be present in the session store,
// so logout and account removal revoke them before expiry.
type AdminService struct {
	accounts AdminAccounts
	sessions SessionStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewAdminService creates an AdminService. An empty secret is replaced by a
// random one, which invalidates tokens on restart.
func NewAdminService(accounts AdminAccounts, sessions SessionStore, secret string, ttl time.Duration) (*AdminService, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}

	return &AdminService{
		accounts: accounts,
		sessions: sessions,
		secret:   key,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.Named("admin"),
	}, nil
}

// HashPassword creates a bcrypt hash.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func views(accounts []models.AdminAccount) []models.AdminView {
	out := make([]models.AdminView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, models.AdminView{Username: a.Username})
	}
	return out
}

// Login checks the password and opens a session.
func (s *AdminService) Login(ctx context.Context, username, password string) (string, models.AdminView, error) {
	if username == "" || password == "" {
		return "", models.AdminView{}, &AuthenticationError{Message: invalidCredentials}
	}

	account, err := s.accounts.Get(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", models.AdminView{}, &AuthenticationError{Message: invalidCredentials}
	}
	if err != nil {
		return "", models.AdminView{}, fmt.Errorf("load admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("Admin login failed", zap.String("username", username))
		return "", models.AdminView{}, &AuthenticationError{Message: invalidCredentials}
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   account.Username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", models.AdminView{}, fmt.Errorf("sign admin token: %w", err)
	}

	if err := s.sessions.Save(ctx, claims.ID, account.Username, s.ttl); err != nil {
		return "", models.AdminView{}, fmt.Errorf("save admin session: %w", err)
	}

	s.log.Info("Admin signed in", zap.String("username", account.Username))
	return token, models.AdminView{Username: account.Username}, nil
}

func (s *AdminService) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token is missing subject or id")
	}
	return claims, nil
}

// Authenticate resolves a bearer token to its admin. The token must be
// unexpired, its session must still exist and so must the account.
func (s *AdminService) Authenticate(ctx context.Context, token string) (models.AdminView, error) {
	unauthorized := &AuthenticationError{Message: "Unauthorized"}
	if token == "" {
		return models.AdminView{}, unauthorized
	}

	claims, err := s.parse(token)
	if err != nil {
		return models.AdminView{}, unauthorized
	}

	username, err := s.sessions.Lookup(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return models.AdminView{}, unauthorized
	}
	if err != nil {
		return models.AdminView{}, fmt.Errorf("lookup admin session: %w", err)
	}
	if username != claims.Subject {
		return models.AdminView{}, unauthorized
	}

	if _, err := s.accounts.Get(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.AdminView{}, unauthorized
		}
		return models.AdminView{}, fmt.Errorf("load admin: %w", err)
	}

	return models.AdminView{Username: username}, nil
}

// Logout closes the session of a token. Invalid tokens are ignored.
func (s *AdminService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete admin session: %w", err)
	}
	return nil
}

// List returns every admin account.
func (s *AdminService) List(ctx context.Context) ([]models.AdminView, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return views(accounts), nil
}

// Create adds an admin account.
func (s *AdminService) Create(ctx context.Context, username, password string) ([]models.AdminView, error) {
	if username == "" || password == "" {
		return nil, &ValidationError{Message: "Username and password required"}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	accounts, err := s.accounts.Create(ctx, models.AdminAccount{Username: username, PasswordHash: hash})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, &ValidationError{Message: "Admin already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.log.Info("Admin account created", zap.String("username", username))
	return views(accounts), nil
}

// UpdatePassword replaces an admin's password. An empty password leaves the
// account unchanged.
func (s *AdminService) UpdatePassword(ctx context.Context, username, password string) ([]models.AdminView, error) {
	if password == "" {
		if _, err := s.accounts.Get(ctx, username); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &NotFoundError{Resource: "admin", ID: username}
			}
			return nil, fmt.Errorf("load admin: %w", err)
		}
		return s.List(ctx)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	accounts, err := s.accounts.UpdatePasswordHash(ctx, username, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "admin", ID: username}
	}
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}

	s.log.Info("Admin password updated", zap.String("username", username))
	return views(accounts), nil
}

// Delete removes an admin account. The seeded admin cannot be removed.
func (s *AdminService) Delete(ctx context.Context, username string) ([]models.AdminView, error) {
	if username == repository.DefaultAdminUsername {
		return nil, &ValidationError{Message: "Cannot delete default admin"}
	}

	accounts, err := s.accounts.Delete(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("delete admin: %w", err)
	}

	s.log.Info("Admin account deleted", zap.String("username", username))
	return views(accounts), nil
}
