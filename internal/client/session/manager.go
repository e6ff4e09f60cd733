// Package session owns the per-process session lifecycle: it observes the
// identity provider, provisions the namespace on sign-in, drives the initial
// collection fetches and clears everything on sign-out.
package session

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"costtracker/internal/client/identity"
	"costtracker/internal/errs"
	"costtracker/internal/model"
)

// State is the lifecycle of the current session.
type State int

const (
	// StateNoSession means signed out; projections are empty and inert.
	StateNoSession State = iota
	StateInitializing
	StateReady
	// StateErrored means provisioning failed. The session stays published
	// so the user can retry or sign out; it is advisory, not a lockout.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	default:
		return "no session"
	}
}

// Provisioner ensures the per-user namespace exists.
type Provisioner interface {
	Ensure(ctx context.Context, userID uuid.UUID) error
}

// Fetcher is the slice of a collection syncer the manager drives.
type Fetcher interface {
	Fetch(ctx context.Context) error
	Reset()
}

// Manager is the single writer of the session value. Collection syncers read
// it through Snapshot, which also carries the epoch used for the discard
// check on late completions.
type Manager struct {
	provider identity.Provider
	prov     Provisioner
	fetchers []Fetcher
	log      *zap.Logger

	ctx       context.Context
	cancelSub func()

	mu    sync.Mutex
	state State
	sess  model.Session
	epoch uint64
	err   error
}

// NewManager wires the manager to its collaborators. Call Start to begin
// observing the identity provider.
func NewManager(provider identity.Provider, prov Provisioner, log *zap.Logger, fetchers ...Fetcher) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{provider: provider, prov: prov, fetchers: fetchers, log: log}
}

// Track registers collection syncers created after the manager (they need
// its Snapshot). Call before Start.
func (m *Manager) Track(fetchers ...Fetcher) {
	m.fetchers = append(m.fetchers, fetchers...)
}

// Start subscribes to identity transitions. ctx bounds the provisioning and
// fetch calls triggered by future events.
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	m.cancelSub = m.provider.Subscribe(m.onEvent)
}

// Close cancels the identity subscription. No event is delivered after it
// returns.
func (m *Manager) Close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// Snapshot returns the published session, the current epoch and whether a
// session is live. The epoch moves on every sign-in and sign-out.
func (m *Manager) Snapshot() (model.Session, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, m.epoch, m.state != StateNoSession
}

// Current returns the live session, if any.
func (m *Manager) Current() (model.Session, bool) {
	sess, _, ok := m.Snapshot()
	return sess, ok
}

// State returns the lifecycle state and the advisory provisioning error, set
// only in StateErrored.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *Manager) onEvent(ev identity.Event) {
	if ev.Identity == nil {
		m.signOut()
		return
	}
	m.signIn(*ev.Identity)
}

func (m *Manager) signIn(id identity.Identity) {
	m.mu.Lock()
	m.epoch++
	m.sess = id.Session()
	m.state = StateInitializing
	m.err = nil
	m.mu.Unlock()

	m.log.Info("session started", zap.Stringer("user_id", id.UserID))
	m.initialize(m.ctx)
}

func (m *Manager) signOut() {
	m.mu.Lock()
	m.epoch++
	m.sess = model.Session{}
	m.state = StateNoSession
	m.err = nil
	m.mu.Unlock()

	for _, f := range m.fetchers {
		f.Reset()
	}
	m.log.Info("session cleared")
}

// initialize runs ensure-then-fetch for the published session. Provisioning
// must settle before the first fetch is issued; the two collection fetches
// then run in parallel, each failure staying local to its projection.
func (m *Manager) initialize(ctx context.Context) {
	sess, _, ok := m.Snapshot()
	if !ok {
		return
	}

	if err := m.prov.Ensure(ctx, sess.UserID); err != nil {
		m.mu.Lock()
		m.state = StateErrored
		m.err = err
		m.mu.Unlock()
		m.log.Warn("namespace provisioning failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.state = StateReady
	m.err = nil
	m.mu.Unlock()

	var g errgroup.Group
	for _, f := range m.fetchers {
		g.Go(func() error { return f.Fetch(ctx) })
	}
	if err := g.Wait(); err != nil {
		m.log.Warn("initial fetch failed", zap.Error(err))
	}
}

// RetryProvisioning re-runs ensure and, on success, re-triggers both fetches.
// The current session is kept either way.
func (m *Manager) RetryProvisioning(ctx context.Context) error {
	if _, ok := m.Current(); !ok {
		return errs.ErrNoSession
	}
	m.initialize(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
