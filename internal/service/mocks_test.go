package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/repository"
	"github.com/finearr/finearr/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAsyncSender struct {
	mock.Mock
}

func (m *mockAsyncSender) Dispatch(category models.Category, item models.MediaItem) {
	m.Called(category, item)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, category models.Category, item models.MediaItem) error {
	args := m.Called(ctx, category, item)
	return args.Error(0)
}

type mockItemSender struct {
	mock.Mock
}

func (m *mockItemSender) Send(ctx context.Context, item models.MediaItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingPublisher keeps every event it is given.
type recordingPublisher struct {
	mu     sync.Mutex
	events []LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingRecorder counts observations by label.
type recordingRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	dispatches  map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{transitions: map[string]int{}, dispatches: map[string]int{}}
}

func (r *recordingRecorder) ObserveTransition(transition string, _ models.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[transition]++
}

func (r *recordingRecorder) ObserveDispatch(_ models.Category, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches[outcome]++
}

func (r *recordingRecorder) dispatchCount(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatches[outcome]
}

func newFileStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

type ledgerFixture struct {
	store      store.Store
	perms      *repository.PermissionRepository
	ledger     *repository.LedgerRepository
	dispatcher *mockAsyncSender
	events     *recordingPublisher
	recorder   *recordingRecorder
	service    *LedgerService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	s := newFileStore(t)
	f := &ledgerFixture{
		store:      s,
		perms:      repository.NewPermissionRepository(s),
		ledger:     repository.NewLedgerRepository(s),
		dispatcher: new(mockAsyncSender),
		events:     &recordingPublisher{},
		recorder:   newRecordingRecorder(),
	}
	f.service = NewLedgerService(f.ledger, NewPermissionService(f.perms), f.dispatcher, f.events, f.recorder)
	return f
}

func (f *ledgerFixture) setDefaults(t *testing.T, p models.Policy) {
	t.Helper()
	_, err := f.perms.Update(context.Background(), func(policy *models.PermissionPolicy) {
		policy.Defaults = p
	})
	require.NoError(t, err)
}

func boolPtr(b bool) *bool {
	return &b
}
