package repository

import (
	"context"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/store"
)

// LedgerRepository stores the pending requests, approvals and blacklist
// documents. Each document has its own single writer; operations spanning
// two documents apply the removal first.
type LedgerRepository struct {
	store store.Store
}

// NewLedgerRepository creates a LedgerRepository.
func NewLedgerRepository(s store.Store) *LedgerRepository {
	return &LedgerRepository{store: s}
}

// Pending returns the pending requests document.
func (r *LedgerRepository) Pending(ctx context.Context) (models.PendingRequests, error) {
	doc, err := store.Load(ctx, r.store, store.DocRequests, newPending)
	normalizePending(&doc)
	return doc, err
}

// Approvals returns the approvals history, most recent first.
func (r *LedgerRepository) Approvals(ctx context.Context) ([]models.ApprovalEntry, error) {
	doc, err := store.Load(ctx, r.store, store.DocApprovals, newApprovals)
	if doc == nil {
		doc = newApprovals()
	}
	return doc, err
}

// Blacklist returns the blacklist document.
func (r *LedgerRepository) Blacklist(ctx context.Context) (models.Blacklist, error) {
	doc, err := store.Load(ctx, r.store, store.DocBlacklist, newBlacklist)
	normalizeBlacklist(&doc)
	return doc, err
}

// AppendPending appends an entry to the category's pending list.
func (r *LedgerRepository) AppendPending(ctx context.Context, entry models.RequestEntry) error {
	return store.Mutate(ctx, r.store, store.DocRequests, newPending, func(doc *models.PendingRequests) error {
		normalizePending(doc)
		list := doc.List(entry.Category)
		*list = append(*list, entry)
		return nil
	})
}

// TakePending removes and returns the first pending entry with the id.
func (r *LedgerRepository) TakePending(ctx context.Context, category models.Category, id string) (models.RequestEntry, error) {
	var taken models.RequestEntry
	err := store.Mutate(ctx, r.store, store.DocRequests, newPending, func(doc *models.PendingRequests) error {
		normalizePending(doc)
		list := doc.List(category)
		for i, e := range *list {
			if string(e.ID) == id {
				taken = e
				*list = append((*list)[:i], (*list)[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	return taken, err
}

// PrependApproval records an approval and truncates the history to max entries.
func (r *LedgerRepository) PrependApproval(ctx context.Context, entry models.ApprovalEntry, max int) error {
	return store.Mutate(ctx, r.store, store.DocApprovals, newApprovals, func(doc *[]models.ApprovalEntry) error {
		next := make([]models.ApprovalEntry, 0, len(*doc)+1)
		next = append(next, entry)
		next = append(next, *doc...)
		if len(next) > max {
			next = next[:max]
		}
		*doc = next
		return nil
	})
}

// AppendBlacklist appends a denial to the category's blacklist.
func (r *LedgerRepository) AppendBlacklist(ctx context.Context, entry models.BlacklistEntry) error {
	return store.Mutate(ctx, r.store, store.DocBlacklist, newBlacklist, func(doc *models.Blacklist) error {
		normalizeBlacklist(doc)
		list := doc.List(entry.Category)
		*list = append(*list, entry)
		return nil
	})
}

// RemoveBlacklisted removes every blacklist entry with the id and reports
// how many were removed.
func (r *LedgerRepository) RemoveBlacklisted(ctx context.Context, category models.Category, id string) (int, error) {
	removed := 0
	err := store.Mutate(ctx, r.store, store.DocBlacklist, newBlacklist, func(doc *models.Blacklist) error {
		normalizeBlacklist(doc)
		list := doc.List(category)
		kept := make([]models.BlacklistEntry, 0, len(*list))
		for _, e := range *list {
			if string(e.ID) == id {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		*list = kept
		return nil
	})
	return removed, err
}

func normalizePending(doc *models.PendingRequests) {
	if doc.Movies == nil {
		doc.Movies = []models.RequestEntry{}
	}
	if doc.Shows == nil {
		doc.Shows = []models.RequestEntry{}
	}
}

func normalizeBlacklist(doc *models.Blacklist) {
	if doc.Movies == nil {
		doc.Movies = []models.BlacklistEntry{}
	}
	if doc.Shows == nil {
		doc.Shows = []models.BlacklistEntry{}
	}
}
