// Package repository provides typed access to the stored documents.
package repository

import (
	"errors"

	"github.com/finearr/finearr/internal/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

func newPending() models.PendingRequests {
	return models.PendingRequests{
		Movies: []models.RequestEntry{},
		Shows:  []models.RequestEntry{},
	}
}

func newBlacklist() models.Blacklist {
	return models.Blacklist{
		Movies: []models.BlacklistEntry{},
		Shows:  []models.BlacklistEntry{},
	}
}

func newApprovals() []models.ApprovalEntry {
	return []models.ApprovalEntry{}
}

func newUsers() map[string]models.User {
	return map[string]models.User{}
}
