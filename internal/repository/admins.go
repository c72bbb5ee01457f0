package repository

import (
	"context"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/store"
)

// DefaultAdminUsername is the seeded administrator. It cannot be deleted.
const DefaultAdminUsername = "admin"

// AdminRepository stores administrator accounts.
type AdminRepository struct {
	store       store.Store
	defaultHash string
}

// NewAdminRepository creates an AdminRepository. defaultHash is the bcrypt
// hash of the seeded admin's password, used while no document exists.
func NewAdminRepository(s store.Store, defaultHash string) *AdminRepository {
	return &AdminRepository{store: s, defaultHash: defaultHash}
}

func (r *AdminRepository) initial() []models.AdminAccount {
	return []models.AdminAccount{{Username: DefaultAdminUsername, PasswordHash: r.defaultHash}}
}

// List returns every account.
func (r *AdminRepository) List(ctx context.Context) ([]models.AdminAccount, error) {
	return store.Load(ctx, r.store, store.DocAdmins, r.initial)
}

// Get returns the account with the username.
func (r *AdminRepository) Get(ctx context.Context, username string) (models.AdminAccount, error) {
	accounts, err := r.List(ctx)
	if err != nil {
		return models.AdminAccount{}, err
	}

	for _, a := range accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return models.AdminAccount{}, ErrNotFound
}

// Create appends an account and returns the updated list.
func (r *AdminRepository) Create(ctx context.Context, account models.AdminAccount) ([]models.AdminAccount, error) {
	var out []models.AdminAccount
	err := store.Mutate(ctx, r.store, store.DocAdmins, r.initial, func(accounts *[]models.AdminAccount) error {
		for _, a := range *accounts {
			if a.Username == account.Username {
				return ErrAlreadyExists
			}
		}
		*accounts = append(*accounts, account)
		out = *accounts
		return nil
	})
	return out, err
}

// UpdatePasswordHash replaces the hash of an existing account.
func (r *AdminRepository) UpdatePasswordHash(ctx context.Context, username, hash string) ([]models.AdminAccount, error) {
	var out []models.AdminAccount
	err := store.Mutate(ctx, r.store, store.DocAdmins, r.initial, func(accounts *[]models.AdminAccount) error {
		for i := range *accounts {
			if (*accounts)[i].Username == username {
				(*accounts)[i].PasswordHash = hash
				out = *accounts
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

// Delete removes the account if present and returns the updated list.
func (r *AdminRepository) Delete(ctx context.Context, username string) ([]models.AdminAccount, error) {
	var out []models.AdminAccount
	err := store.Mutate(ctx, r.store, store.DocAdmins, r.initial, func(accounts *[]models.AdminAccount) error {
		kept := (*accounts)[:0]
		for _, a := range *accounts {
			if a.Username != username {
				kept = append(kept, a)
			}
		}
		*accounts = kept
		out = kept
		return nil
	})
	return out, err
}
