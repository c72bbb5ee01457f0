package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/finearr/finearr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	matrix = models.MediaItem{ID: "tt0133093", Title: "The Matrix", Year: "1999"}
	lost   = models.MediaItem{ID: "73739", Title: "Lost"}
)

func TestLedgerService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		category string
		item     models.MediaItem
	}{
		{name: "unknown category", username: "alice", category: "book", item: matrix},
		{name: "empty category", username: "alice", category: "", item: matrix},
		{name: "missing item id", username: "alice", category: "movie", item: models.MediaItem{Title: "x"}},
		{name: "missing username", username: " ", category: "movie", item: matrix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(t)

			_, _, err := f.service.Submit(context.Background(), tt.username, tt.category, tt.item)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Equal(t, KindValidation, KindOf(err))
			f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerService_Submit_Pending(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	outcome, entry, err := f.service.Submit(ctx, "alice", "movie", matrix)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomePending, outcome)
	assert.Equal(t, models.CategoryMovie, entry.Category)
	assert.Equal(t, "alice", entry.RequestedBy)
	assert.False(t, entry.RequestedAt.IsZero())

	snapshot, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Requests.Movies, 1)
	assert.Equal(t, matrix.ID, snapshot.Requests.Movies[0].ID)
	assert.Empty(t, snapshot.Approvals)

	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Equal(t, []string{EventRequestPending}, f.events.types())
}

func TestLedgerService_Submit_DuplicatesAreKept(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := f.service.Submit(ctx, "alice", "movie", matrix)
		require.NoError(t, err)
	}

	snapshot, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Requests.Movies, 2)
}

func TestLedgerService_Submit_PermissionDeniedLeavesPendingUnchanged(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Submit(ctx, "alice", "movie", lost)
	require.NoError(t, err)

	f.setDefaults(t, models.Policy{CanRequestMovies: false, CanRequestShows: true})

	before, err := f.service.List(ctx)
	require.NoError(t, err)

	_, _, err = f.service.Submit(ctx, "alice", "movie", matrix)

	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "alice", denied.Username)
	assert.Equal(t, "movie", denied.Category)
	assert.Equal(t, KindPermission, KindOf(err))

	after, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Requests, after.Requests)

	// Shows are still allowed.
	outcome, _, err := f.service.Submit(ctx, "alice", "show", lost)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, outcome)
}

func TestLedgerService_Submit_UserOverride(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.perms.Update(ctx, func(p *models.PermissionPolicy) {
		p.Users["bob"] = models.PolicyOverride{CanRequestShows: boolPtr(false)}
	})
	require.NoError(t, err)

	_, _, err = f.service.Submit(ctx, "bob", "show", lost)
	assert.Equal(t, KindPermission, KindOf(err))

	// Unset override fields fall back to the defaults.
	outcome, _, err := f.service.Submit(ctx, "bob", "movie", matrix)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, outcome)

	_, _, err = f.service.Submit(ctx, "carol", "show", lost)
	assert.NoError(t, err)
}

func TestLedgerService_Submit_AutoApprove(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.setDefaults(t, models.Policy{CanRequestMovies: true, CanRequestShows: true, AutoApprove: true})
	f.dispatcher.On("Dispatch", models.CategoryMovie, mock.Anything).Return()

	const submits = models.MaxApprovals + 5
	for i := 0; i < submits; i++ {
		item := models.MediaItem{ID: models.FlexString(fmt.Sprintf("tt%07d", i)), Title: "Movie"}
		outcome, _, err := f.service.Submit(ctx, "alice", "movie", item)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeApproved, outcome)

		snapshot, err := f.service.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, snapshot.Requests.Movies, "auto-approval never appends to pending")
		assert.LessOrEqual(t, len(snapshot.Approvals), models.MaxApprovals)
		assert.Equal(t, item.ID, snapshot.Approvals[0].ID, "newest approval first")
		assert.Equal(t, models.ApprovedByAuto, snapshot.Approvals[0].ApprovedBy)
	}

	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", submits)
	assert.Equal(t, submits, f.recorder.transitions[TransitionAutoApproved])
}

func TestLedgerService_ApproveThenDeny(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Submit(ctx, "alice", "movie", matrix)
	require.NoError(t, err)

	f.dispatcher.On("Dispatch", models.CategoryMovie, matrix).Return().Once()

	approved, err := f.service.Approve(ctx, "movie", "tt0133093", "admin")
	require.NoError(t, err)
	assert.Equal(t, matrix.ID, approved.ID)
	f.dispatcher.AssertExpectations(t)

	snapshot, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Requests.Movies)
	require.Len(t, snapshot.Approvals, 1)
	assert.Equal(t, "admin", snapshot.Approvals[0].ApprovedBy)
	assert.Equal(t, "alice", snapshot.Approvals[0].RequestedBy)

	_, err = f.service.Deny(ctx, "movie", "tt0133093", "admin")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "tt0133093", notFound.ID)

	assert.Equal(t, []string{EventRequestPending, EventRequestApproved}, f.events.types())
}

func TestLedgerService_Approve_NotFound(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.service.Approve(context.Background(), "show", "missing", "admin")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.service.Approve(context.Background(), "album", "missing", "admin")
	assert.Equal(t, KindValidation, KindOf(err))

	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestLedgerService_Approve_WrongCategory(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Submit(ctx, "alice", "show", lost)
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, "movie", string(lost.ID), "admin")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestLedgerService_DenyThenUnblacklist(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Submit(ctx, "alice", "show", lost)
	require.NoError(t, err)

	denied, err := f.service.Deny(ctx, "show", "73739", "admin")
	require.NoError(t, err)
	assert.Equal(t, lost.ID, denied.ID)

	snapshot, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Requests.Shows)
	require.Len(t, snapshot.Blacklist.Shows, 1)
	assert.Equal(t, "admin", snapshot.Blacklist.Shows[0].DeniedBy)
	assert.False(t, snapshot.Blacklist.Shows[0].DeniedAt.IsZero())

	require.NoError(t, f.service.Unblacklist(ctx, "show", "73739", "admin"))

	snapshot, err = f.service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Blacklist.Shows)

	// Removing again is a no-op.
	require.NoError(t, f.service.Unblacklist(ctx, "show", "73739", "admin"))

	assert.Equal(t, []string{EventRequestPending, EventRequestDenied, EventRequestUnblacklisted}, f.events.types())
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestLedgerService_ResubmitAfterDenialIsAccepted(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Submit(ctx, "alice", "movie", matrix)
	require.NoError(t, err)
	_, err = f.service.Deny(ctx, "movie", "tt0133093", "admin")
	require.NoError(t, err)

	outcome, _, err := f.service.Submit(ctx, "alice", "movie", matrix)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, outcome)
}

func TestLedgerService_ConcurrentSubmits(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := models.MediaItem{ID: models.FlexString(fmt.Sprintf("tt%07d", i))}
			_, _, err := f.service.Submit(ctx, fmt.Sprintf("user%d", i), "movie", item)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snapshot, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Requests.Movies, n)
}

func TestLedgerService_PublishFailureIsNotSurfaced(t *testing.T) {
	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e LedgerEvent) bool {
		return e.Type == EventRequestPending && e.Actor == "alice"
	})).Return(errors.New("broker down"))

	f := newLedgerFixture(t)
	svc := NewLedgerService(f.ledger, NewPermissionService(f.perms), f.dispatcher, publisher, nil)

	outcome, _, err := svc.Submit(context.Background(), "alice", "movie", matrix)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, outcome)
	publisher.AssertExpectations(t)
}
