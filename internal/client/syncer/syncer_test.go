package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costtracker/internal/errs"
	"costtracker/internal/model"
	"costtracker/internal/money"
)

type fakeSessions struct {
	mu    sync.Mutex
	sess  model.Session
	epoch uint64
	ok    bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sess:  model.Session{UserID: uuid.Must(uuid.NewV4()), Email: "alice@example.com"},
		epoch: 1,
		ok:    true,
	}
}

func (f *fakeSessions) Snapshot() (model.Session, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, f.epoch, f.ok
}

func (f *fakeSessions) signOut() {
	f.mu.Lock()
	f.epoch++
	f.ok = false
	f.mu.Unlock()
}

type fakeRemote struct {
	mu         sync.Mutex
	listResp   []model.CostItem
	listErr    error
	createErr  error
	replaceErr error
	removeErr  error

	// when non-nil, Replace/Remove/List block until the channel is closed
	blockReplace chan struct{}
	blockList    chan struct{}

	replaceCalls int
	removeCalls  int
}

func (f *fakeRemote) List(ctx context.Context, userID uuid.UUID) ([]model.CostItem, error) {
	if f.blockList != nil {
		<-f.blockList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CostItem(nil), f.listResp...), f.listErr
}

func (f *fakeRemote) Create(ctx context.Context, userID uuid.UUID, fields model.CostItemFields) (model.CostItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.CostItem{}, f.createErr
	}
	return model.CostItem{ID: uuid.Must(uuid.NewV4()), CostItemFields: fields}, nil
}

func (f *fakeRemote) Replace(ctx context.Context, userID, id uuid.UUID, fields model.CostItemFields) error {
	if f.blockReplace != nil {
		<-f.blockReplace
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	return f.replaceErr
}

func (f *fakeRemote) Remove(ctx context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return f.removeErr
}

func newItemsSyncer(remote *fakeRemote, sessions SessionView) *Syncer[model.CostItem, model.CostItemFields] {
	return ForItems(remote, sessions, nil)
}

func item(name string, cents int64) model.CostItem {
	return model.CostItem{
		ID:             uuid.Must(uuid.NewV4()),
		CostItemFields: model.CostItemFields{Name: name, Cost: money.Cents(cents)},
	}
}

func TestFetch_PopulatesProjection(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{listResp: []model.CostItem{item("cable", 1299), item("duct", 500)}}
	s := newItemsSyncer(remote, newFakeSessions())

	require.NoError(t, s.Fetch(context.Background()))

	p := s.Projection()
	assert.Equal(t, StatusIdle, p.Status)
	assert.True(t, p.Fetched)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "cable", p.Entries[0].Name)
}

func TestFetch_FailureKeepsEntries_AndRecovers(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{listResp: []model.CostItem{item("cable", 1299)}}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	remote.mu.Lock()
	remote.listErr = errs.ErrRemoteUnavailable
	remote.mu.Unlock()

	err := s.Fetch(context.Background())
	require.ErrorIs(t, err, errs.ErrRemoteUnavailable)

	p := s.Projection()
	assert.Equal(t, StatusError, p.Status)
	assert.ErrorIs(t, p.Err, errs.ErrRemoteUnavailable)
	require.Len(t, p.Entries, 1, "previous entries survive a failed fetch")

	// no permanent lockout
	remote.mu.Lock()
	remote.listErr = nil
	remote.mu.Unlock()
	require.NoError(t, s.Fetch(context.Background()))
	assert.Equal(t, StatusIdle, s.Projection().Status)
}

func TestFetch_NoSession(t *testing.T) {
	t.Parallel()
	sessions := newFakeSessions()
	sessions.signOut()
	s := newItemsSyncer(&fakeRemote{}, sessions)

	assert.ErrorIs(t, s.Fetch(context.Background()), errs.ErrNoSession)
}

func TestAdd_NoOptimisticLeakage(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{listResp: []model.CostItem{item("cable", 1299)}}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))
	before := s.Projection().Entries

	remote.mu.Lock()
	remote.createErr = errs.ErrRemoteRejected
	remote.mu.Unlock()

	_, err := s.Add(context.Background(), model.CostItemFields{Name: "pipe", Cost: 100})
	require.ErrorIs(t, err, errs.ErrRemoteRejected)
	assert.Equal(t, before, s.Projection().Entries)
}

func TestAdd_AppendsAcknowledgedRecord(t *testing.T) {
	t.Parallel()
	s := newItemsSyncer(&fakeRemote{}, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	rec, err := s.Add(context.Background(), model.CostItemFields{Name: "pipe", Cost: 100})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	p := s.Projection()
	require.Len(t, p.Entries, 1)
	assert.Equal(t, rec.ID, p.Entries[0].ID)
}

func TestAdd_ValidatesAtBoundary(t *testing.T) {
	t.Parallel()
	s := newItemsSyncer(&fakeRemote{}, newFakeSessions())

	_, err := s.Add(context.Background(), model.CostItemFields{Name: "   ", Cost: 100})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Add(context.Background(), model.CostItemFields{Name: "pipe", Cost: -1})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUpdate_PatchesInPlace(t *testing.T) {
	t.Parallel()
	a, b := item("cable", 1299), item("duct", 500)
	remote := &fakeRemote{listResp: []model.CostItem{a, b}}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	require.NoError(t, s.Update(context.Background(), a.ID, model.CostItemFields{Name: "cable", Cost: 999}))

	p := s.Projection()
	require.Len(t, p.Entries, 2)
	assert.Equal(t, a.ID, p.Entries[0].ID, "position preserved")
	assert.Equal(t, money.Cents(999), p.Entries[0].Cost)
	assert.Equal(t, b.ID, p.Entries[1].ID)
}

func TestUpdate_StaleID_SurfacesNotFound(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{replaceErr: errs.ErrNotFound}
	s := newItemsSyncer(remote, newFakeSessions())

	err := s.Update(context.Background(), uuid.Must(uuid.NewV4()), model.CostItemFields{Name: "x", Cost: 1})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete_RemovesEntry_FailureKeepsIt(t *testing.T) {
	t.Parallel()
	a := item("cable", 1299)
	remote := &fakeRemote{listResp: []model.CostItem{a}}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	remote.mu.Lock()
	remote.removeErr = errs.ErrRemoteUnavailable
	remote.mu.Unlock()
	require.ErrorIs(t, s.Delete(context.Background(), a.ID), errs.ErrRemoteUnavailable)
	require.Len(t, s.Projection().Entries, 1)

	remote.mu.Lock()
	remote.removeErr = nil
	remote.mu.Unlock()
	require.NoError(t, s.Delete(context.Background(), a.ID))
	assert.Empty(t, s.Projection().Entries)
}

func TestSerializationGuard_SameID(t *testing.T) {
	t.Parallel()
	a := item("cable", 1299)
	remote := &fakeRemote{listResp: []model.CostItem{a}, blockReplace: make(chan struct{})}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- s.Update(context.Background(), a.ID, model.CostItemFields{Name: "cable", Cost: 1})
	}()

	// wait for the update to take the in-flight slot
	for {
		s.mu.Lock()
		_, busy := s.inflight[a.ID]
		s.mu.Unlock()
		if busy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	err := s.Delete(context.Background(), a.ID)
	assert.ErrorIs(t, err, errs.ErrOperationInProgress)

	close(remote.blockReplace)
	require.NoError(t, <-done)
	assert.Equal(t, 1, remote.replaceCalls)
	assert.Equal(t, 0, remote.removeCalls, "rejected delete never reached the remote")
}

func TestSessionScopedDiscard_FetchAfterSignOut(t *testing.T) {
	t.Parallel()
	sessions := newFakeSessions()
	remote := &fakeRemote{
		listResp:  []model.CostItem{item("cable", 1299)},
		blockList: make(chan struct{}),
	}
	s := newItemsSyncer(remote, sessions)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()

	// wait for the fetch to flip the projection to loading, then sign out
	for s.Projection().Status != StatusLoading {
		time.Sleep(time.Millisecond)
	}
	sessions.signOut()
	s.Reset()
	close(remote.blockList)
	require.NoError(t, <-done)

	p := s.Projection()
	assert.Empty(t, p.Entries, "result from the old session must not land")
	assert.False(t, p.Fetched)
	assert.Equal(t, StatusIdle, p.Status)
}

func TestReset_ClearsToNeverFetched(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{listResp: []model.CostItem{item("cable", 1299)}}
	s := newItemsSyncer(remote, newFakeSessions())
	require.NoError(t, s.Fetch(context.Background()))

	s.Reset()
	p := s.Projection()
	assert.Empty(t, p.Entries)
	assert.False(t, p.Fetched)
	assert.Equal(t, StatusIdle, p.Status)
}
