package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/repository"
	"github.com/finearr/finearr/pkg/logger"
	"go.uber.org/zap"
)

// EventPublishTimeout bounds the delivery of one ledger event.
const EventPublishTimeout = 5 * time.Second

// Ledger transitions, as reported to the Recorder.
const (
	TransitionPending       = "pending"
	TransitionAutoApproved  = "auto_approved"
	TransitionApproved      = "approved"
	TransitionDenied        = "denied"
	TransitionUnblacklisted = "unblacklisted"
	TransitionRejected      = "rejected"
)

// LedgerStore persists the three ledger documents.
type LedgerStore interface {
	Pending(ctx context.Context) (models.PendingRequests, error)
	Approvals(ctx context.Context) ([]models.ApprovalEntry, error)
	Blacklist(ctx context.Context) (models.Blacklist, error)
	AppendPending(ctx context.Context, entry models.RequestEntry) error
	TakePending(ctx context.Context, category models.Category, id string) (models.RequestEntry, error)
	PrependApproval(ctx context.Context, entry models.ApprovalEntry, max int) error
	AppendBlacklist(ctx context.Context, entry models.BlacklistEntry) error
	RemoveBlacklisted(ctx context.Context, category models.Category, id string) (int, error)
}

// PolicyEvaluator resolves a user's effective policy.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, username string) models.Policy
}

// AsyncSender starts a dispatch without waiting for it.
type AsyncSender interface {
	Dispatch(category models.Category, item models.MediaItem)
}

// LedgerService moves requests between pending, approved and blacklisted.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type LedgerService struct {
	repo       LedgerStore
	perms      PolicyEvaluator
	dispatcher AsyncSender
	events     EventPublisher
	recorder   Recorder
	now        func() time.Time
	log        *zap.Logger
}

// NewLedgerService creates a LedgerService. Nil events and recorder are
// replaced with no-op implementations.
func NewLedgerService(repo LedgerStore, perms PolicyEvaluator, dispatcher AsyncSender, events EventPublisher, recorder Recorder) *LedgerService {
	if events == nil {
		events = NoopPublisher{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &LedgerService{
		repo:       repo,
		perms:      perms,
		dispatcher: dispatcher,
		events:     events,
		recorder:   recorder,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.Named("ledger"),
	}
}

func parseCategory(raw string) (models.Category, error) {
	category, ok := models.ParseCategory(raw)
	if !ok {
		return "", &ValidationError{Message: fmt.Sprintf("invalid category: %q (expected movie or show)", raw)}
	}
	return category, nil
}

// Submit records a request by username. With autoApprove the request goes
// straight to the approvals history and is dispatched; otherwise it is
// appended to the pending list.
func (s *LedgerService) Submit(ctx context.Context, username, rawCategory string, item models.MediaItem) (models.Outcome, models.RequestEntry, error) {
	category, err := parseCategory(rawCategory)
	if err != nil {
		return "", models.RequestEntry{}, err
	}
	if item.ID == "" {
		return "", models.RequestEntry{}, &ValidationError{Message: "item id is required"}
	}
	if strings.TrimSpace(username) == "" {
		return "", models.RequestEntry{}, &ValidationError{Message: "username is required"}
	}

	policy := s.perms.Evaluate(ctx, username)
	if !policy.Allows(category) {
		s.recorder.ObserveTransition(TransitionRejected, category)
		s.log.Info("Request rejected by policy",
			zap.String("username", username),
			zap.String("category", string(category)),
			zap.String("itemId", string(item.ID)),
		)
		return "", models.RequestEntry{}, &PermissionDeniedError{Username: username, Category: string(category)}
	}

	entry := models.RequestEntry{
		MediaItem:   item,
		Category:    category,
		RequestedBy: username,
		RequestedAt: s.now(),
	}

	if policy.AutoApprove {
		approval := models.ApprovalEntry{
			RequestEntry: entry,
			ApprovedAt:   entry.RequestedAt,
			ApprovedBy:   models.ApprovedByAuto,
		}
		if err := s.repo.PrependApproval(ctx, approval, models.MaxApprovals); err != nil {
			return "", models.RequestEntry{}, fmt.Errorf("record approval: %w", err)
		}

		s.dispatcher.Dispatch(category, item)
		s.recorder.ObserveTransition(TransitionAutoApproved, category)
		s.publish(ctx, newLedgerEvent(EventRequestApproved, entry, models.ApprovedByAuto))

		s.log.Info("Request auto-approved",
			zap.String("username", username),
			zap.String("category", string(category)),
			zap.String("itemId", string(item.ID)),
		)
		return models.OutcomeApproved, entry, nil
	}

	if err := s.repo.AppendPending(ctx, entry); err != nil {
		return "", models.RequestEntry{}, fmt.Errorf("record pending request: %w", err)
	}

	s.recorder.ObserveTransition(TransitionPending, category)
	s.publish(ctx, newLedgerEvent(EventRequestPending, entry, username))

	s.log.Info("Request pending approval",
		zap.String("username", username),
		zap.String("category", string(category)),
		zap.String("itemId", string(item.ID)),
	)
	return models.OutcomePending, entry, nil
}

func (s *LedgerService) takePending(ctx context.Context, category models.Category, id string) (models.RequestEntry, error) {
	entry, err := s.repo.TakePending(ctx, category, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.RequestEntry{}, &NotFoundError{Resource: "request", ID: id}
	}
	if err != nil {
		return models.RequestEntry{}, fmt.Errorf("take pending request: %w", err)
	}
	entry.Category = category
	return entry, nil
}

// restorePending puts back an entry whose follow-up write failed.
func (s *LedgerService) restorePending(ctx context.Context, entry models.RequestEntry) {
	if err := s.repo.AppendPending(ctx, entry); err != nil {
		s.log.Error("Failed to restore pending request",
			zap.Error(err),
			zap.String("category", string(entry.Category)),
			zap.String("itemId", string(entry.ID)),
		)
	}
}

// Approve moves the first pending entry with id into the approvals history
// and dispatches it.
func (s *LedgerService) Approve(ctx context.Context, rawCategory, id, admin string) (models.RequestEntry, error) {
	category, err := parseCategory(rawCategory)
	if err != nil {
		return models.RequestEntry{}, err
	}

	entry, err := s.takePending(ctx, category, id)
	if err != nil {
		return models.RequestEntry{}, err
	}

	approval := models.ApprovalEntry{
		RequestEntry: entry,
		ApprovedAt:   s.now(),
		ApprovedBy:   admin,
	}
	if err := s.repo.PrependApproval(ctx, approval, models.MaxApprovals); err != nil {
		s.restorePending(ctx, entry)
		return models.RequestEntry{}, fmt.Errorf("record approval: %w", err)
	}

	s.dispatcher.Dispatch(category, entry.MediaItem)
	s.recorder.ObserveTransition(TransitionApproved, category)
	s.publish(ctx, newLedgerEvent(EventRequestApproved, entry, admin))

	s.log.Info("Request approved",
		zap.String("admin", admin),
		zap.String("category", string(category)),
		zap.String("itemId", id),
	)
	return entry, nil
}

// Deny moves the first pending entry with id onto the blacklist.
func (s *LedgerService) Deny(ctx context.Context, rawCategory, id, admin string) (models.RequestEntry, error) {
	category, err := parseCategory(rawCategory)
	if err != nil {
		return models.RequestEntry{}, err
	}

	entry, err := s.takePending(ctx, category, id)
	if err != nil {
		return models.RequestEntry{}, err
	}

	denial := models.BlacklistEntry{
		RequestEntry: entry,
		DeniedAt:     s.now(),
		DeniedBy:     admin,
	}
	if err := s.repo.AppendBlacklist(ctx, denial); err != nil {
		s.restorePending(ctx, entry)
		return models.RequestEntry{}, fmt.Errorf("record denial: %w", err)
	}

	s.recorder.ObserveTransition(TransitionDenied, category)
	s.publish(ctx, newLedgerEvent(EventRequestDenied, entry, admin))

	s.log.Info("Request denied",
		zap.String("admin", admin),
		zap.String("category", string(category)),
		zap.String("itemId", id),
	)
	return entry, nil
}

// Unblacklist removes every blacklist entry with id in the category. It is
// a no-op when there is none.
func (s *LedgerService) Unblacklist(ctx context.Context, rawCategory, id, admin string) error {
	category, err := parseCategory(rawCategory)
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveBlacklisted(ctx, category, id)
	if err != nil {
		return fmt.Errorf("remove blacklist entry: %w", err)
	}
	if removed == 0 {
		return nil
	}

	s.recorder.ObserveTransition(TransitionUnblacklisted, category)
	s.publish(ctx, newLedgerEvent(EventRequestUnblacklisted, models.RequestEntry{
		MediaItem: models.MediaItem{ID: models.FlexString(id)},
		Category:  category,
	}, admin))

	s.log.Info("Blacklist entry removed",
		zap.String("admin", admin),
		zap.String("category", string(category)),
		zap.String("itemId", id),
		zap.Int("removed", removed),
	)
	return nil
}

// List returns the pending requests, approvals history and blacklist.
func (s *LedgerService) List(ctx context.Context) (models.LedgerSnapshot, error) {
	pending, err := s.repo.Pending(ctx)
	if err != nil {
		return models.LedgerSnapshot{}, fmt.Errorf("load pending requests: %w", err)
	}
	approvals, err := s.repo.Approvals(ctx)
	if err != nil {
		return models.LedgerSnapshot{}, fmt.Errorf("load approvals: %w", err)
	}
	blacklist, err := s.repo.Blacklist(ctx)
	if err != nil {
		return models.LedgerSnapshot{}, fmt.Errorf("load blacklist: %w", err)
	}

	return models.LedgerSnapshot{
		Requests:  pending,
		Approvals: approvals,
		Blacklist: blacklist,
	}, nil
}

func (s *LedgerService) publish(ctx context.Context, event LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EventPublishTimeout)
	defer cancel()

	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish ledger event",
			zap.Error(err),
			zap.String("eventType", event.Type),
			zap.String("itemId", event.ItemID),
		)
	}
}
