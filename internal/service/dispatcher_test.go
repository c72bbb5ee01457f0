package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service/arr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestArrDispatcher_Send(t *testing.T) {
	tests := []struct {
		name      string
		category  models.Category
		moviesErr error
		showsErr  error
		wantKind  string
		wantIs    error
	}{
		{name: "movie success", category: models.CategoryMovie},
		{name: "show success", category: models.CategoryShow},
		{name: "not configured passes through", category: models.CategoryMovie, moviesErr: arr.ErrNotConfigured, wantIs: arr.ErrNotConfigured, wantKind: KindInternal},
		{name: "failure becomes upstream error", category: models.CategoryShow, showsErr: errors.New("503"), wantKind: KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movies := new(mockItemSender)
			shows := new(mockItemSender)
			if tt.category == models.CategoryMovie {
				movies.On("Send", mock.Anything, matrix).Return(tt.moviesErr)
			} else {
				shows.On("Send", mock.Anything, matrix).Return(tt.showsErr)
			}

			err := NewArrDispatcher(movies, shows).Send(context.Background(), tt.category, matrix)

			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
			}
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			movies.AssertExpectations(t)
			shows.AssertExpectations(t)
			if tt.category == models.CategoryMovie {
				shows.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			} else {
				movies.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestArrDispatcher_UpstreamErrorNamesService(t *testing.T) {
	movies := new(mockItemSender)
	movies.On("Send", mock.Anything, mock.Anything).Return(errors.New("refused"))

	err := NewArrDispatcher(movies, new(mockItemSender)).Send(context.Background(), models.CategoryMovie, matrix)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "radarr", upstream.Service)
}

func TestAsyncDispatcher_OutcomesAreRecorded(t *testing.T) {
	next := new(mockDispatcher)
	next.On("Send", mock.Anything, models.CategoryMovie, mock.MatchedBy(func(i models.MediaItem) bool { return i.ID == "ok" })).Return(nil)
	next.On("Send", mock.Anything, models.CategoryMovie, mock.MatchedBy(func(i models.MediaItem) bool { return i.ID == "skip" })).Return(arr.ErrNotConfigured)
	next.On("Send", mock.Anything, models.CategoryMovie, mock.MatchedBy(func(i models.MediaItem) bool { return i.ID == "fail" })).Return(&UpstreamError{Service: "radarr", Cause: errors.New("500")})

	recorder := newRecordingRecorder()
	d := NewAsyncDispatcher(next, time.Second, recorder)

	for _, id := range []string{"ok", "skip", "fail", "ok"} {
		d.Dispatch(models.CategoryMovie, models.MediaItem{ID: models.FlexString(id)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	assert.Equal(t, 2, recorder.dispatchCount(DispatchSuccess))
	assert.Equal(t, 1, recorder.dispatchCount(DispatchSkipped))
	assert.Equal(t, 1, recorder.dispatchCount(DispatchFailure))
	next.AssertNumberOfCalls(t, "Send", 4)
}

// blockingDispatcher blocks until released or its context ends.
type blockingDispatcher struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingDispatcher) Send(ctx context.Context, _ models.Category, _ models.MediaItem) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestAsyncDispatcher_DispatchDoesNotBlockCaller(t *testing.T) {
	next := &blockingDispatcher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	d := NewAsyncDispatcher(next, time.Minute, nil)

	returned := make(chan struct{})
	go func() {
		d.Dispatch(models.CategoryShow, lost)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on the download manager")
	}

	<-next.started

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(short), context.DeadlineExceeded)

	close(next.release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestAsyncDispatcher_TimeoutIsFailure(t *testing.T) {
	next := &blockingDispatcher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	recorder := newRecordingRecorder()
	d := NewAsyncDispatcher(next, 10*time.Millisecond, recorder)

	d.Dispatch(models.CategoryMovie, matrix)
	require.NoError(t, d.Wait(context.Background()))

	assert.Equal(t, 1, recorder.dispatchCount(DispatchFailure))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&ValidationError{Message: "bad"}, KindValidation},
		{&PermissionDeniedError{Username: "u", Category: "movie"}, KindPermission},
		{&NotFoundError{Resource: "request", ID: "1"}, KindNotFound},
		{&AuthenticationError{Message: "nope"}, KindAuthentication},
		{&UpstreamError{Service: "plex", Cause: errors.New("x")}, KindUpstream},
		{fmt.Errorf("wrapped: %w", &NotFoundError{Resource: "user"}), KindNotFound},
		{errors.New("plain"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.NotEmpty(t, tt.err.Error())
		})
	}

	assert.Equal(t, `user "u" does not have permission to request movies`, (&PermissionDeniedError{Username: "u", Category: "movie"}).Error())
	assert.Equal(t, "user not found", (&NotFoundError{Resource: "user"}).Error())
}
