package service

import (
	"context"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/pkg/logger"
	"go.uber.org/zap"
)

// PermissionStore reads and updates the permission policy document.
type PermissionStore interface {
	Get(ctx context.Context) (models.PermissionPolicy, error)
	Update(ctx context.Context, fn func(*models.PermissionPolicy)) (models.PermissionPolicy, error)
}

// PermissionService resolves effective per-user policies.
type PermissionService struct {
	repo PermissionStore
	log  *zap.Logger
}

// NewPermissionService creates a PermissionService.
func NewPermissionService(repo PermissionStore) *PermissionService {
	return &PermissionService{repo: repo, log: logger.Named("permissions")}
}

// Evaluate returns the effective policy for username. It never fails: when
// the policy cannot be read the built-in defaults apply.
func (s *PermissionService) Evaluate(ctx context.Context, username string) models.Policy {
	policy, err := s.repo.Get(ctx)
	if err != nil {
		s.log.Warn("Failed to read permission policy, using defaults",
			zap.Error(err),
			zap.String("username", username),
		)
		return models.DefaultPolicy()
	}

	override, ok := policy.Users[username]
	if !ok {
		return policy.Defaults
	}
	return override.Apply(policy.Defaults)
}

// Policy returns the stored policy document.
func (s *PermissionService) Policy(ctx context.Context) (models.PermissionPolicy, error) {
	return s.repo.Get(ctx)
}

// UpdatePolicy merges patch into the stored policy. Set default fields
// overwrite; each users entry replaces that user's override and a nil
// entry removes it.
func (s *PermissionService) UpdatePolicy(ctx context.Context, patch models.PolicyPatch) (models.PermissionPolicy, error) {
	updated, err := s.repo.Update(ctx, func(policy *models.PermissionPolicy) {
		if patch.Defaults != nil {
			policy.Defaults = patch.Defaults.Apply(policy.Defaults)
		}
		for username, override := range patch.Users {
			if override == nil {
				delete(policy.Users, username)
				continue
			}
			policy.Users[username] = *override
		}
	})
	if err != nil {
		return models.PermissionPolicy{}, err
	}

	s.log.Info("Permission policy updated",
		zap.Bool("defaultsChanged", patch.Defaults != nil),
		zap.Int("userOverrides", len(patch.Users)),
	)
	return updated, nil
}
