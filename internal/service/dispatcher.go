package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service/arr"
	"github.com/finearr/finearr/pkg/logger"
	"go.uber.org/zap"
)

// Dispatch outcomes.
const (
	DispatchSuccess = "success"
	DispatchFailure = "failure"
	DispatchSkipped = "skipped"
)

// Dispatcher hands an approved item to whatever fulfills its category.
type Dispatcher interface {
	Send(ctx context.Context, category models.Category, item models.MediaItem) error
}

// ItemSender posts one item to a single download manager.
type ItemSender interface {
	Send(ctx context.Context, item models.MediaItem) error
}

// Recorder receives ledger and dispatch measurements.
type Recorder interface {
	ObserveTransition(transition string, category models.Category)
	ObserveDispatch(category models.Category, outcome string, elapsed time.Duration)
}

// NopRecorder discards measurements.
type NopRecorder struct{}

// ObserveTransition implements Recorder.
func (NopRecorder) ObserveTransition(string, models.Category) {}

// ObserveDispatch implements Recorder.
func (NopRecorder) ObserveDispatch(models.Category, string, time.Duration) {}

// ArrDispatcher routes movies to Radarr and shows to Sonarr.
type ArrDispatcher struct {
	movies ItemSender
	shows  ItemSender
}

// NewArrDispatcher creates an ArrDispatcher.
func NewArrDispatcher(movies, shows ItemSender) *ArrDispatcher {
	return &ArrDispatcher{movies: movies, shows: shows}
}

// Send implements Dispatcher. arr.ErrNotConfigured is passed through
// unwrapped; any other failure becomes an UpstreamError.
func (d *ArrDispatcher) Send(ctx context.Context, category models.Category, item models.MediaItem) error {
	target, name := d.shows, string(arr.Sonarr)
	if category == models.CategoryMovie {
		target, name = d.movies, string(arr.Radarr)
	}

	err := target.Send(ctx, item)
	if err == nil || errors.Is(err, arr.ErrNotConfigured) {
		return err
	}
	return &UpstreamError{Service: name, Cause: err}
}

// AsyncDispatcher runs dispatches on their own goroutines so approvals never
// wait on, or fail because of, the download manager.
type AsyncDispatcher struct {
	next     Dispatcher
	timeout  time.Duration
	recorder Recorder
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewAsyncDispatcher creates an AsyncDispatcher. Each dispatch is bounded by timeout.
func NewAsyncDispatcher(next Dispatcher, timeout time.Duration, recorder Recorder) *AsyncDispatcher {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &AsyncDispatcher{
		next:     next,
		timeout:  timeout,
		recorder: recorder,
		log:      logger.Named("dispatcher"),
	}
}

// Dispatch starts the dispatch and returns immediately.
func (a *AsyncDispatcher) Dispatch(category models.Category, item models.MediaItem) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(category, item)
	}()
}

func (a *AsyncDispatcher) run(category models.Category, item models.MediaItem) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	err := a.next.Send(ctx, category, item)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		a.recorder.ObserveDispatch(category, DispatchSuccess, elapsed)
		a.log.Info("Dispatched request",
			zap.String("category", string(category)),
			zap.String("itemId", string(item.ID)),
			zap.Duration("elapsed", elapsed),
		)
	case errors.Is(err, arr.ErrNotConfigured):
		a.recorder.ObserveDispatch(category, DispatchSkipped, elapsed)
		a.log.Debug("Download manager not configured, skipping dispatch",
			zap.String("category", string(category)),
			zap.String("itemId", string(item.ID)),
		)
	default:
		a.recorder.ObserveDispatch(category, DispatchFailure, elapsed)
		a.log.Error("Failed to dispatch request",
			zap.Error(err),
			zap.String("category", string(category)),
			zap.String("itemId", string(item.ID)),
		)
	}
}

// Wait blocks until in-flight dispatches finish or ctx ends.
func (a *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
