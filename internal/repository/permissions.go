package repository

import (
	"context"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/store"
)

// PermissionRepository stores the permission policy document.
type PermissionRepository struct {
	store store.Store
}

// NewPermissionRepository creates a PermissionRepository.
func NewPermissionRepository(s store.Store) *PermissionRepository {
	return &PermissionRepository{store: s}
}

// Get returns the stored policy, or the default policy when none is stored.
func (r *PermissionRepository) Get(ctx context.Context) (models.PermissionPolicy, error) {
	policy, err := store.Load(ctx, r.store, store.DocPermissions, models.DefaultPermissionPolicy)
	if err != nil {
		return models.PermissionPolicy{}, err
	}
	if policy.Users == nil {
		policy.Users = map[string]models.PolicyOverride{}
	}
	return policy, nil
}

// Update applies fn to the stored policy and returns the result.
func (r *PermissionRepository) Update(ctx context.Context, fn func(*models.PermissionPolicy)) (models.PermissionPolicy, error) {
	var out models.PermissionPolicy
	err := store.Mutate(ctx, r.store, store.DocPermissions, models.DefaultPermissionPolicy, func(policy *models.PermissionPolicy) error {
		if policy.Users == nil {
			policy.Users = map[string]models.PolicyOverride{}
		}
		fn(policy)
		out = *policy
		return nil
	})
	return out, err
}
